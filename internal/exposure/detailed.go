package exposure

import (
	"sort"
	"time"

	"swap-risk-lab/internal/domain"
)

// topCounterparties bounds DetailedAnalysis.TopCounterparties.
const topCounterparties = 5

// TypeMetrics summarizes the contracts of one swap type.
type TypeMetrics struct {
	Count             int       `json:"count"`
	TotalNotional     float64   `json:"total_notional"`
	AvgNotional       float64   `json:"avg_notional"`
	FixedRateSwaps    int       `json:"fixed_rate_swaps"`
	FloatingRateSwaps int       `json:"floating_rate_swaps"`
	MinMaturity       time.Time `json:"min_maturity"`
	MaxMaturity       time.Time `json:"max_maturity"`
}

// Share is one row of a ranked breakdown.
type Share struct {
	Name       string  `json:"name"`
	Notional   float64 `json:"notional"`
	Percentage float64 `json:"percentage"` // of the exposure's total notional, 0..100
}

// DetailedAnalysis breaks an exposure down by swap type, counterparty and
// currency.
type DetailedAnalysis struct {
	MetricsByType     map[domain.SwapType]*TypeMetrics `json:"metrics_by_type"`
	TopCounterparties []Share                          `json:"top_counterparties"`
	CurrencyExposures []Share                          `json:"currency_exposures"`
}

// Detailed computes the per-type metrics and ranked breakdowns of e.
func Detailed(e *Exposure) *DetailedAnalysis {
	out := &DetailedAnalysis{MetricsByType: make(map[domain.SwapType]*TypeMetrics)}

	for _, c := range e.Contracts {
		m, ok := out.MetricsByType[c.SwapType]
		if !ok {
			m = &TypeMetrics{}
			out.MetricsByType[c.SwapType] = m
		}
		m.Count++
		m.TotalNotional += c.NotionalAmount
		if c.FixedRate != nil {
			m.FixedRateSwaps++
		}
		if c.FloatingRateIndex != nil {
			m.FloatingRateSwaps++
		}
		if m.MinMaturity.IsZero() || c.MaturityDate.Before(m.MinMaturity) {
			m.MinMaturity = c.MaturityDate
		}
		if c.MaturityDate.After(m.MaxMaturity) {
			m.MaxMaturity = c.MaturityDate
		}
	}
	for _, m := range out.MetricsByType {
		m.AvgNotional = m.TotalNotional / float64(m.Count)
	}

	out.TopCounterparties = Ranked(e.ByCounterparty, e.TotalNotional)
	if len(out.TopCounterparties) > topCounterparties {
		out.TopCounterparties = out.TopCounterparties[:topCounterparties]
	}
	out.CurrencyExposures = Ranked(e.ByCurrency, e.TotalNotional)

	return out
}

// Ranked sorts a breakdown by notional descending, then name.
func Ranked(breakdown map[string]float64, total float64) []Share {
	out := make([]Share, 0, len(breakdown))
	for name, notional := range breakdown {
		s := Share{Name: name, Notional: notional}
		if total > 0 {
			s.Percentage = notional / total * 100
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Notional != out[j].Notional {
			return out[i].Notional > out[j].Notional
		}
		return out[i].Name < out[j].Name
	})
	return out
}
