package exposure

import (
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"swap-risk-lab/internal/domain"
)

// Concentration levels of a counterparty's largest single-entity exposure.
const (
	ConcentrationHigh   = "High"
	ConcentrationMedium = "Medium"
	ConcentrationLow    = "Low"
)

// CounterpartyAnalysis profiles the contracts held with one counterparty.
type CounterpartyAnalysis struct {
	Counterparty      string             `json:"counterparty"`
	TotalNotional     float64            `json:"total_notional"`
	NumContracts      int                `json:"num_contracts"`
	ReferenceEntities []string           `json:"reference_entities"`
	ExposureByEntity  map[string]float64 `json:"exposure_by_entity"`

	MaxEntityExposure  float64 `json:"max_entity_exposure"`
	ConcentrationRatio float64 `json:"concentration_ratio"`
	ConcentrationLevel string  `json:"concentration_level"`

	AvgDaysToMaturity float64   `json:"avg_days_to_maturity"`
	EarliestMaturity  time.Time `json:"earliest_maturity"`
	LatestMaturity    time.Time `json:"latest_maturity"`

	// SwapTypeCounts buckets credit_default, interest_rate and total_return;
	// every other type is counted under "other".
	SwapTypeCounts map[string]int `json:"swap_type_counts"`
	// CollateralTerms lists the distinct non-empty collateral terms as JSON.
	CollateralTerms []string `json:"collateral_terms"`
}

// ConcentrationLevelOf bands a single-entity concentration ratio.
func ConcentrationLevelOf(ratio float64) string {
	switch {
	case ratio > 0.5:
		return ConcentrationHigh
	case ratio > 0.2:
		return ConcentrationMedium
	default:
		return ConcentrationLow
	}
}

// AnalyzeCounterparty profiles contracts as of now. Returns ErrNoData when
// contracts is empty.
func AnalyzeCounterparty(name string, contracts []*domain.SwapContract, now time.Time) (*CounterpartyAnalysis, error) {
	if len(contracts) == 0 {
		return nil, ErrNoData
	}

	out := &CounterpartyAnalysis{
		Counterparty:     name,
		NumContracts:     len(contracts),
		ExposureByEntity: make(map[string]float64),
		SwapTypeCounts: map[string]int{
			string(domain.SwapTypeCreditDefault): 0,
			string(domain.SwapTypeInterestRate):  0,
			string(domain.SwapTypeTotalReturn):   0,
			"other":                              0,
		},
	}

	entities := mapset.NewThreadUnsafeSet[string]()
	collateral := mapset.NewThreadUnsafeSet[string]()
	today := truncateDay(now)
	var totalDays float64

	for _, c := range contracts {
		out.TotalNotional += c.NotionalAmount
		out.ExposureByEntity[c.ReferenceEntity] += c.NotionalAmount
		entities.Add(c.ReferenceEntity)

		totalDays += c.MaturityDate.Sub(today).Hours() / 24
		if out.EarliestMaturity.IsZero() || c.MaturityDate.Before(out.EarliestMaturity) {
			out.EarliestMaturity = c.MaturityDate
		}
		if c.MaturityDate.After(out.LatestMaturity) {
			out.LatestMaturity = c.MaturityDate
		}

		switch c.SwapType {
		case domain.SwapTypeCreditDefault, domain.SwapTypeInterestRate, domain.SwapTypeTotalReturn:
			out.SwapTypeCounts[string(c.SwapType)]++
		default:
			out.SwapTypeCounts["other"]++
		}

		if len(c.CollateralTerms) > 0 {
			if data, err := c.CollateralTerms.Encode(); err == nil {
				collateral.Add(string(data))
			}
		}
	}

	for _, v := range out.ExposureByEntity {
		if v > out.MaxEntityExposure {
			out.MaxEntityExposure = v
		}
	}
	if out.TotalNotional > 0 {
		out.ConcentrationRatio = out.MaxEntityExposure / out.TotalNotional
	}
	out.ConcentrationLevel = ConcentrationLevelOf(out.ConcentrationRatio)
	out.AvgDaysToMaturity = totalDays / float64(len(contracts))

	out.ReferenceEntities = entities.ToSlice()
	sort.Strings(out.ReferenceEntities)
	out.CollateralTerms = collateral.ToSlice()
	sort.Strings(out.CollateralTerms)

	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
