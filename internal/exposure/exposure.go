// Package exposure aggregates notional exposure of the stored contracts by
// reference entity or counterparty.
package exposure

import (
	"errors"
	"strings"
	"time"

	"swap-risk-lab/internal/domain"
)

// ErrNoData is returned when no contract matches the query. Callers treat it
// as an empty result, not a failure.
var ErrNoData = errors.New("no matching swaps")

// Subject kinds.
const (
	KindEntity       = domain.SubjectEntity
	KindCounterparty = domain.SubjectCounterparty
)

// Exposure is the aggregate over the contracts matching one subject.
type Exposure struct {
	Kind      string // KindEntity or KindCounterparty
	Subject   string
	Contracts []*domain.SwapContract

	TotalNotional float64
	NumSwaps      int
	AvgNotional   float64

	ByCurrency     map[string]float64
	ByCounterparty map[string]float64
	BySwapType     map[domain.SwapType]float64

	Largest          *domain.SwapContract
	EarliestMaturity time.Time
	LatestMaturity   time.Time
}

// SwapTypes returns the distinct swap types present, in AllSwapTypes order.
func (e *Exposure) SwapTypes() []domain.SwapType {
	var out []domain.SwapType
	for _, t := range domain.AllSwapTypes {
		if _, ok := e.BySwapType[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Aggregate sums contracts into an Exposure. Returns ErrNoData when
// contracts is empty.
func Aggregate(kind, subject string, contracts []*domain.SwapContract) (*Exposure, error) {
	if len(contracts) == 0 {
		return nil, ErrNoData
	}

	e := &Exposure{
		Kind:           kind,
		Subject:        subject,
		Contracts:      contracts,
		NumSwaps:       len(contracts),
		ByCurrency:     make(map[string]float64),
		ByCounterparty: make(map[string]float64),
		BySwapType:     make(map[domain.SwapType]float64),
	}

	for _, c := range contracts {
		e.TotalNotional += c.NotionalAmount
		e.ByCurrency[strings.ToUpper(c.Currency)] += c.NotionalAmount
		e.ByCounterparty[c.Counterparty] += c.NotionalAmount
		e.BySwapType[c.SwapType] += c.NotionalAmount

		// First contract wins ties so the result is stable for sorted input.
		if e.Largest == nil || c.NotionalAmount > e.Largest.NotionalAmount {
			e.Largest = c
		}
		if e.EarliestMaturity.IsZero() || c.MaturityDate.Before(e.EarliestMaturity) {
			e.EarliestMaturity = c.MaturityDate
		}
		if c.MaturityDate.After(e.LatestMaturity) {
			e.LatestMaturity = c.MaturityDate
		}
	}
	e.AvgNotional = e.TotalNotional / float64(e.NumSwaps)

	return e, nil
}

// MaxShare returns the largest value in breakdown divided by total. A zero
// total counts as fully concentrated.
func MaxShare[K comparable](breakdown map[K]float64, total float64) float64 {
	if total <= 0 {
		return 1.0
	}
	var largest float64
	for _, v := range breakdown {
		if v > largest {
			largest = v
		}
	}
	return largest / total
}
