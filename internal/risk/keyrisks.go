package risk

import "fmt"

// Thresholds for KeyRisks.
const (
	concentrationThreshold = 0.5
	notionalScoreThreshold = 70
	longMaturityYears      = 5
	highRiskTypeScore      = 80
)

// KeyRisks lists the notable drivers of an assessment in a fixed order.
func KeyRisks(a *Assessment) []string {
	var out []string
	if a.CounterpartyConcentration > concentrationThreshold {
		out = append(out, fmt.Sprintf("Counterparty concentration %.2f%% exceeds 50%%", a.CounterpartyConcentration*100))
	}
	if a.CurrencyConcentration > concentrationThreshold {
		out = append(out, fmt.Sprintf("Currency concentration %.2f%% exceeds 50%%", a.CurrencyConcentration*100))
	}
	if a.NotionalScore > notionalScoreThreshold {
		out = append(out, fmt.Sprintf("Large notional exposure %.2f", a.Exposure.TotalNotional))
	}
	if a.AvgYearsToMaturity > longMaturityYears {
		out = append(out, fmt.Sprintf("Long average maturity of %.1f years", a.AvgYearsToMaturity))
	}
	for _, t := range a.Exposure.SwapTypes() {
		if TypeScores[t] >= highRiskTypeScore {
			out = append(out, fmt.Sprintf("High-risk swap type %s", t))
		}
	}
	return out
}
