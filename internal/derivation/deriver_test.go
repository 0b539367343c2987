package derivation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/trigger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func baseContract(t domain.SwapType) *domain.SwapContract {
	return &domain.SwapContract{
		ContractID:       "C1",
		Counterparty:     "GS",
		ReferenceEntity:  "GME",
		NotionalAmount:   1_000_000,
		Currency:         "USD",
		EffectiveDate:    date(2025, 1, 1),
		MaturityDate:     date(2026, 1, 1),
		SwapType:         t,
		PaymentFrequency: domain.FrequencyQuarterly,
	}
}

func TestDerive_InterestRateFixedPayment(t *testing.T) {
	c := baseContract(domain.SwapTypeInterestRate)
	c.FixedRate = ptr(4.0)

	res := Derive(c)

	require.Len(t, res.Obligations, 1)
	ob := res.Obligations[0]
	assert.Equal(t, domain.ObligationFixedPayment, ob.Type)
	assert.InDelta(t, 10_000, ob.Amount, 1e-9)
	require.NotNil(t, ob.DueDate)
	assert.Equal(t, date(2025, 4, 1), *ob.DueDate)
	assert.Equal(t, domain.StatusPending, ob.Status)
	assert.Equal(t, "Fixed rate payment at 4.0%", ob.Description)

	require.Len(t, res.Triggers[0], 1)
	trig := res.Triggers[0][0]
	assert.Equal(t, domain.TriggerTimeBased, trig.Type)
	assert.Equal(t, "date >= 2025-04-01", trig.Condition)
	assert.Equal(t, "Payment due on 2025-04-01", trig.Description)
	assert.True(t, trig.IsActive)
}

func TestDerive_InterestRateFixedAndFloating(t *testing.T) {
	c := baseContract(domain.SwapTypeInterestRate)
	c.FixedRate = ptr(3.5)
	c.FloatingRateIndex = ptr("SOFR")
	c.PaymentFrequency = domain.FrequencyMonthly

	res := Derive(c)

	require.Len(t, res.Obligations, 2)
	assert.InDelta(t, 1_000_000*0.035/12, res.Obligations[0].Amount, 0.01)
	assert.Equal(t, date(2025, 2, 1), *res.Obligations[0].DueDate)

	floating := res.Obligations[1]
	assert.Equal(t, domain.ObligationFloatingPayment, floating.Type)
	assert.Zero(t, floating.Amount)
	assert.Equal(t, "Floating rate payment based on SOFR", floating.Description)
	assert.Equal(t, date(2025, 2, 1), *floating.DueDate)
	assert.Equal(t, domain.TriggerTimeBased, res.Triggers[1][0].Type)
}

func TestDerive_InterestRateWithoutRates(t *testing.T) {
	res := Derive(baseContract(domain.SwapTypeInterestRate))
	assert.Empty(t, res.Obligations)
	assert.Zero(t, res.TriggerCount())
}

func TestDerive_CreditDefault(t *testing.T) {
	res := Derive(baseContract(domain.SwapTypeCreditDefault))

	require.Len(t, res.Obligations, 2)

	premium := res.Obligations[0]
	assert.Equal(t, domain.ObligationPremiumPayment, premium.Type)
	assert.InDelta(t, 10_000, premium.Amount, 1e-9)
	assert.Equal(t, date(2025, 4, 1), *premium.DueDate)
	assert.Equal(t, domain.TriggerTimeBased, res.Triggers[0][0].Type)

	protection := res.Obligations[1]
	assert.Equal(t, domain.ObligationProtectionPayment, protection.Type)
	assert.InDelta(t, 1_000_000, protection.Amount, 1e-9)
	assert.Nil(t, protection.DueDate)
	assert.Equal(t, domain.StatusContingent, protection.Status)

	require.Len(t, res.Triggers[1], 1)
	assert.Equal(t, domain.TriggerCreditEvent, res.Triggers[1][0].Type)
	assert.Equal(t, "credit_event(GME) = true", res.Triggers[1][0].Condition)
	assert.Equal(t, 2, res.TriggerCount())
}

func TestDerive_ParenthesizedEntityTriggersEvaluate(t *testing.T) {
	env := trigger.Env{
		AsOf:         date(2025, 6, 1),
		CreditEvents: map[string]bool{"acme (holdings) inc": true},
		Performance:  map[string]float64{"Acme (Holdings) Inc": -0.2},
	}

	for _, st := range []domain.SwapType{domain.SwapTypeCreditDefault, domain.SwapTypeTotalReturn} {
		c := baseContract(st)
		c.ReferenceEntity = "Acme (Holdings) Inc"
		res := Derive(c)
		require.NotZero(t, res.TriggerCount(), st)
		for _, triggers := range res.Triggers {
			for _, tr := range triggers {
				fired, err := trigger.Evaluate(tr.Condition, env)
				require.NoError(t, err, tr.Condition)
				assert.True(t, fired, tr.Condition)
			}
		}
	}
}

func TestDerive_CreditDefaultPremiumOverride(t *testing.T) {
	c := baseContract(domain.SwapTypeCreditDefault)
	c.AdditionalTerms = domain.Terms{"premium_rate": 2.5}

	res := Derive(c)
	assert.InDelta(t, 25_000, res.Obligations[0].Amount, 1e-9)

	c.AdditionalTerms = domain.Terms{"premium_rate": 0.005}
	res = Derive(c)
	assert.InDelta(t, 5_000, res.Obligations[0].Amount, 1e-9)
}

func TestDerive_TotalReturn(t *testing.T) {
	c := baseContract(domain.SwapTypeTotalReturn)
	c.PaymentFrequency = domain.FrequencyAnnual

	res := Derive(c)

	require.Len(t, res.Obligations, 1)
	ob := res.Obligations[0]
	assert.Equal(t, domain.ObligationTotalReturnPayment, ob.Type)
	assert.Zero(t, ob.Amount)
	assert.Equal(t, date(2026, 1, 1), *ob.DueDate)
	assert.Equal(t, "Total return payment on GME", ob.Description)
	assert.Equal(t, domain.TriggerPerformance, res.Triggers[0][0].Type)
	assert.Equal(t, "performance(GME) != 0", res.Triggers[0][0].Condition)
}

func TestDerive_NoAutomaticObligations(t *testing.T) {
	for _, typ := range []domain.SwapType{
		domain.SwapTypeCurrency, domain.SwapTypeCommodity, domain.SwapTypeEquity, domain.SwapTypeOther,
	} {
		res := Derive(baseContract(typ))
		assert.Empty(t, res.Obligations, "type %s", typ)
		assert.Len(t, res.Instruments, 1, "type %s", typ)
	}
}

func TestDerive_ExplicitTerms(t *testing.T) {
	c := baseContract(domain.SwapTypeEquity)
	c.AdditionalTerms = domain.Terms{
		"obligations": []any{
			map[string]any{
				"type":        "dividend_pass_through",
				"amount":      1250.0,
				"due_date":    "2025-06-30",
				"description": "Dividend pass-through",
				"triggers": []any{
					map[string]any{"type": "custom", "condition": "dividend(GME) > 0"},
				},
			},
			map[string]any{"type": "fixed_payment", "amount": "300"},
			"not-an-object",
		},
		"triggers": []any{
			map[string]any{"type": "custom", "condition": "date >= 2025-12-31", "obligation_index": 1.0},
		},
		"underlying_instruments": []any{
			"037833100",
			map[string]any{"identifier": "US0378331005", "quantity": 100.0},
		},
	}

	res := Derive(c)

	require.Len(t, res.Obligations, 2)
	first := res.Obligations[0]
	assert.Equal(t, "dividend_pass_through", first.Type)
	assert.InDelta(t, 1250, first.Amount, 1e-9)
	assert.Equal(t, date(2025, 6, 30), *first.DueDate)
	assert.Equal(t, "USD", first.Currency)
	require.Len(t, res.Triggers[0], 1)
	assert.Equal(t, "dividend(GME) > 0", res.Triggers[0][0].Condition)

	second := res.Obligations[1]
	assert.Equal(t, domain.ObligationFixedPayment, second.Type)
	assert.Nil(t, second.DueDate)
	// type-implied time trigger plus the indexed explicit trigger
	require.Len(t, res.Triggers[1], 2)
	assert.Equal(t, "date >= TBD", res.Triggers[1][0].Condition)
	assert.Equal(t, "date >= 2025-12-31", res.Triggers[1][1].Condition)

	require.Len(t, res.Instruments, 3)
	assert.Equal(t, domain.InstrumentEquity, res.Instruments[0].InstrumentType)
	assert.Equal(t, "Reference entity for equity swap", res.Instruments[0].Description)
	assert.Equal(t, domain.InstrumentBond, res.Instruments[1].InstrumentType)
	assert.Equal(t, domain.InstrumentBond, res.Instruments[2].InstrumentType)
	require.NotNil(t, res.Instruments[2].Quantity)
	assert.InDelta(t, 100, *res.Instruments[2].Quantity, 1e-9)
}

func TestDerive_IsDeterministic(t *testing.T) {
	c := baseContract(domain.SwapTypeCreditDefault)
	assert.Equal(t, Derive(c), Derive(c))
}

func TestInstrumentType(t *testing.T) {
	tests := map[string]string{
		"GME":          domain.InstrumentEquity,
		"aapl":         domain.InstrumentEquity,
		"SPX INDEX":    domain.InstrumentIndex,
		"CDXIDX5Y":     domain.InstrumentIndex,
		"037833100":    domain.InstrumentBond,
		"US0378331005": domain.InstrumentBond,
		"CDX.NA.IG":    domain.InstrumentOther,
		"GOLDMANSACHS": domain.InstrumentBond,
		"":             domain.InstrumentOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, InstrumentType(in), "identifier %q", in)
	}
}

func TestPaymentsPerYear(t *testing.T) {
	want := map[domain.PaymentFrequency]int{
		domain.FrequencyDaily:      365,
		domain.FrequencyWeekly:     52,
		domain.FrequencyMonthly:    12,
		domain.FrequencyQuarterly:  4,
		domain.FrequencySemiAnnual: 2,
		domain.FrequencyAnnual:     1,
		domain.FrequencyAtMaturity: 1,
	}
	for f, n := range want {
		assert.Equal(t, n, PaymentsPerYear(f), "frequency %s", f)
	}
}

func TestNextPaymentDate(t *testing.T) {
	start := date(2025, 1, 31)
	assert.Equal(t, date(2025, 2, 28), NextPaymentDate(start, domain.FrequencyMonthly))
	assert.Equal(t, date(2025, 4, 30), NextPaymentDate(start, domain.FrequencyQuarterly))
	assert.Equal(t, date(2025, 7, 31), NextPaymentDate(start, domain.FrequencySemiAnnual))
	assert.Equal(t, date(2026, 1, 31), NextPaymentDate(start, domain.FrequencyAnnual))
	assert.Equal(t, date(2025, 4, 30), NextPaymentDate(start, domain.FrequencyWeekly))
}

func TestNextPaymentDate_ClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		start time.Time
		freq  domain.PaymentFrequency
		want  time.Time
	}{
		{date(2025, 1, 31), domain.FrequencyMonthly, date(2025, 2, 28)},
		{date(2024, 11, 30), domain.FrequencyQuarterly, date(2025, 2, 28)},
		{date(2024, 8, 31), domain.FrequencySemiAnnual, date(2025, 2, 28)},
		{date(2024, 2, 29), domain.FrequencyAnnual, date(2025, 2, 28)},
		{date(2024, 1, 31), domain.FrequencyMonthly, date(2024, 2, 29)},
		{date(2025, 1, 15), domain.FrequencyMonthly, date(2025, 2, 15)},
		{date(2024, 12, 31), domain.FrequencyMonthly, date(2025, 1, 31)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextPaymentDate(tt.start, tt.freq), "%s from %s", tt.freq, tt.start.Format("2006-01-02"))
	}
}

func TestDerive_MonthEndFixedPaymentTrigger(t *testing.T) {
	c := baseContract(domain.SwapTypeInterestRate)
	c.FixedRate = ptr(4.0)
	c.EffectiveDate = date(2025, 1, 31)
	c.PaymentFrequency = domain.FrequencyMonthly

	res := Derive(c)
	require.NotEmpty(t, res.Obligations)
	fixed := res.Obligations[0]
	require.NotNil(t, fixed.DueDate)
	assert.Equal(t, date(2025, 2, 28), *fixed.DueDate)
	require.NotEmpty(t, res.Triggers[0])
	assert.Equal(t, "date >= 2025-02-28", res.Triggers[0][0].Condition)
}
