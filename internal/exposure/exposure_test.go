package exposure

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage/memory"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type seed struct {
	id, counterparty, entity, currency string
	notional                           float64
	swapType                           domain.SwapType
	maturity                           time.Time
}

func seedStore(t *testing.T, seeds ...seed) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	for _, s := range seeds {
		cp, err := store.GetOrCreateCounterparty(ctx, s.counterparty)
		if err != nil {
			t.Fatalf("counterparty: %v", err)
		}
		_, err = store.UpsertContract(ctx, &domain.SwapContract{
			ContractID:      s.id,
			CounterpartyID:  cp.ID,
			ReferenceEntity: s.entity,
			NotionalAmount:  s.notional,
			Currency:        s.currency,
			EffectiveDate:   day(2024, 1, 1),
			MaturityDate:    s.maturity,
			SwapType:        s.swapType,
		})
		if err != nil {
			t.Fatalf("upsert %s: %v", s.id, err)
		}
	}
	return store
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEntityExposure(t *testing.T) {
	store := seedStore(t,
		seed{"S1", "Goldman Sachs", "GameStop Corp", "USD", 1_000_000, domain.SwapTypeCreditDefault, day(2026, 1, 1)},
		seed{"S2", "Citi", "GAMESTOP CORP", "eur", 3_000_000, domain.SwapTypeTotalReturn, day(2028, 6, 30)},
		seed{"S3", "Citi", "Apple", "USD", 9_000_000, domain.SwapTypeEquity, day(2027, 1, 1)},
	)
	agg := NewAggregator(store, Options{})

	e, err := agg.EntityExposure(context.Background(), "gamestop")
	if err != nil {
		t.Fatalf("exposure: %v", err)
	}
	if e.NumSwaps != 2 || e.TotalNotional != 4_000_000 {
		t.Fatalf("got %d swaps / %v notional, want 2 / 4000000", e.NumSwaps, e.TotalNotional)
	}
	if e.ByCurrency["EUR"] != 3_000_000 || e.ByCurrency["USD"] != 1_000_000 {
		t.Errorf("currency breakdown: %v", e.ByCurrency)
	}
	if e.ByCounterparty["Citi"] != 3_000_000 {
		t.Errorf("counterparty breakdown: %v", e.ByCounterparty)
	}
	if e.BySwapType[domain.SwapTypeTotalReturn] != 3_000_000 {
		t.Errorf("type breakdown: %v", e.BySwapType)
	}
	if e.Largest.ContractID != "S2" {
		t.Errorf("largest = %s, want S2", e.Largest.ContractID)
	}
	if !e.EarliestMaturity.Equal(day(2026, 1, 1)) || !e.LatestMaturity.Equal(day(2028, 6, 30)) {
		t.Errorf("maturity bounds = %v..%v", e.EarliestMaturity, e.LatestMaturity)
	}
	if e.AvgNotional != 2_000_000 {
		t.Errorf("avg notional = %v", e.AvgNotional)
	}
	types := e.SwapTypes()
	if len(types) != 2 || types[0] != domain.SwapTypeCreditDefault {
		t.Errorf("swap types = %v", types)
	}
}

func TestExposure_NoData(t *testing.T) {
	agg := NewAggregator(seedStore(t), Options{})

	if _, err := agg.EntityExposure(context.Background(), "nobody"); !errors.Is(err, ErrNoData) {
		t.Errorf("entity: expected ErrNoData, got %v", err)
	}
	if _, err := agg.CounterpartyExposure(context.Background(), "nobody"); !errors.Is(err, ErrNoData) {
		t.Errorf("counterparty: expected ErrNoData, got %v", err)
	}
	if _, err := agg.AnalyzeCounterparty(context.Background(), "nobody"); !errors.Is(err, ErrNoData) {
		t.Errorf("analysis: expected ErrNoData, got %v", err)
	}
}

func TestCounterpartyExposure_ExactMatch(t *testing.T) {
	store := seedStore(t,
		seed{"S1", "Citi", "GME", "USD", 1_000_000, domain.SwapTypeEquity, day(2026, 1, 1)},
		seed{"S2", "Citigroup", "GME", "USD", 2_000_000, domain.SwapTypeEquity, day(2026, 1, 1)},
	)

	for _, cache := range []*SnapshotCache{nil, NewSnapshotCache(store)} {
		agg := NewAggregator(store, Options{Cache: cache})
		e, err := agg.Exposure(context.Background(), KindCounterparty, "CITI")
		if err != nil {
			t.Fatalf("exposure: %v", err)
		}
		if e.NumSwaps != 1 || e.TotalNotional != 1_000_000 {
			t.Errorf("cache=%v: got %d swaps / %v", cache != nil, e.NumSwaps, e.TotalNotional)
		}
	}
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t,
		seed{"S1", "Citi", "GME", "USD", 1_000_000, domain.SwapTypeEquity, day(2026, 1, 1)},
	)
	cache := NewSnapshotCache(store)
	agg := NewAggregator(store, Options{Cache: cache})

	if _, err := agg.EntityExposure(ctx, "GME"); err != nil {
		t.Fatalf("exposure: %v", err)
	}
	if _, err := agg.EntityExposure(ctx, "GME"); err != nil {
		t.Fatalf("exposure: %v", err)
	}
	if cache.Loads() != 1 {
		t.Errorf("loads = %d, want 1", cache.Loads())
	}

	cp, _ := store.GetOrCreateCounterparty(ctx, "Citi")
	_, err := store.UpsertContract(ctx, &domain.SwapContract{
		ContractID: "S2", CounterpartyID: cp.ID, ReferenceEntity: "GME",
		NotionalAmount: 500_000, Currency: "USD",
		EffectiveDate: day(2024, 1, 1), MaturityDate: day(2027, 1, 1),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	agg.Invalidate()

	e, err := agg.EntityExposure(ctx, "GME")
	if err != nil {
		t.Fatalf("exposure: %v", err)
	}
	if e.NumSwaps != 2 || e.TotalNotional != 1_500_000 {
		t.Errorf("after invalidate: %d swaps / %v notional", e.NumSwaps, e.TotalNotional)
	}
	if cache.Loads() != 2 {
		t.Errorf("loads = %d, want 2", cache.Loads())
	}
}

func TestAnalyzeCounterparty(t *testing.T) {
	now := day(2025, 1, 1)
	contracts := []*domain.SwapContract{
		{ContractID: "S1", Counterparty: "Citi", ReferenceEntity: "GME", NotionalAmount: 6_000_000,
			SwapType: domain.SwapTypeCreditDefault, MaturityDate: day(2025, 1, 11),
			CollateralTerms: domain.Terms{"threshold": 1.0}},
		{ContractID: "S2", Counterparty: "Citi", ReferenceEntity: "AAPL", NotionalAmount: 3_000_000,
			SwapType: domain.SwapTypeCommodity, MaturityDate: day(2025, 1, 31),
			CollateralTerms: domain.Terms{"threshold": 1.0}},
		{ContractID: "S3", Counterparty: "Citi", ReferenceEntity: "GME", NotionalAmount: 1_000_000,
			SwapType: domain.SwapTypeInterestRate, MaturityDate: day(2024, 12, 22)},
	}

	a, err := AnalyzeCounterparty("Citi", contracts, now)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.TotalNotional != 10_000_000 || a.NumContracts != 3 {
		t.Errorf("totals: %v / %d", a.TotalNotional, a.NumContracts)
	}
	if len(a.ReferenceEntities) != 2 || a.ReferenceEntities[0] != "AAPL" {
		t.Errorf("entities = %v", a.ReferenceEntities)
	}
	if !approx(a.ConcentrationRatio, 0.7) || a.ConcentrationLevel != ConcentrationHigh {
		t.Errorf("concentration = %v (%s)", a.ConcentrationRatio, a.ConcentrationLevel)
	}
	// (10 + 30 - 10) / 3 days
	if !approx(a.AvgDaysToMaturity, 10) {
		t.Errorf("avg days = %v, want 10", a.AvgDaysToMaturity)
	}
	if a.SwapTypeCounts["credit_default"] != 1 || a.SwapTypeCounts["interest_rate"] != 1 || a.SwapTypeCounts["other"] != 1 {
		t.Errorf("type counts = %v", a.SwapTypeCounts)
	}
	if len(a.CollateralTerms) != 1 {
		t.Errorf("collateral terms = %v", a.CollateralTerms)
	}
	if !a.EarliestMaturity.Equal(day(2024, 12, 22)) || !a.LatestMaturity.Equal(day(2025, 1, 31)) {
		t.Errorf("maturity bounds = %v..%v", a.EarliestMaturity, a.LatestMaturity)
	}
}

func TestConcentrationLevelOf(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0.51, ConcentrationHigh},
		{0.5, ConcentrationMedium},
		{0.21, ConcentrationMedium},
		{0.2, ConcentrationLow},
		{0, ConcentrationLow},
	}
	for _, tt := range tests {
		if got := ConcentrationLevelOf(tt.ratio); got != tt.want {
			t.Errorf("ConcentrationLevelOf(%v) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestDetailed(t *testing.T) {
	fixed := 4.0
	index := "SOFR"
	var contracts []*domain.SwapContract
	for i, cp := range []string{"A", "B", "C", "D", "E", "F"} {
		contracts = append(contracts, &domain.SwapContract{
			ContractID: cp, Counterparty: cp, Currency: "USD",
			NotionalAmount: float64((i + 1) * 100),
			SwapType:       domain.SwapTypeInterestRate,
			MaturityDate:   day(2026+i, 1, 1),
		})
	}
	contracts[0].FixedRate = &fixed
	contracts[1].FloatingRateIndex = &index
	contracts[5].Currency = "EUR"

	e, err := Aggregate(KindEntity, "x", contracts)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	d := Detailed(e)

	m := d.MetricsByType[domain.SwapTypeInterestRate]
	if m == nil || m.Count != 6 || m.TotalNotional != 2100 || m.AvgNotional != 350 {
		t.Fatalf("type metrics = %+v", m)
	}
	if m.FixedRateSwaps != 1 || m.FloatingRateSwaps != 1 {
		t.Errorf("rate counts = %d / %d", m.FixedRateSwaps, m.FloatingRateSwaps)
	}
	if !m.MinMaturity.Equal(day(2026, 1, 1)) || !m.MaxMaturity.Equal(day(2031, 1, 1)) {
		t.Errorf("maturity bounds = %v..%v", m.MinMaturity, m.MaxMaturity)
	}

	if len(d.TopCounterparties) != 5 || d.TopCounterparties[0].Name != "F" {
		t.Errorf("top counterparties = %+v", d.TopCounterparties)
	}
	if len(d.CurrencyExposures) != 2 || d.CurrencyExposures[0].Name != "USD" {
		t.Errorf("currency exposures = %+v", d.CurrencyExposures)
	}
	if !approx(d.CurrencyExposures[1].Percentage, 600.0/2100*100) {
		t.Errorf("EUR percentage = %v", d.CurrencyExposures[1].Percentage)
	}
}

func TestMaxShare(t *testing.T) {
	if got := MaxShare(map[string]float64{"a": 0}, 0); got != 1.0 {
		t.Errorf("zero total: got %v, want 1", got)
	}
	if got := MaxShare(map[string]float64{"a": 25, "b": 75}, 100); got != 0.75 {
		t.Errorf("got %v, want 0.75", got)
	}
}
