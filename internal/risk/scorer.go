// Package risk scores an exposure on a 0-100 scale and classifies it.
package risk

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
)

// Weights of the five sub-scores in the composite.
type Weights struct {
	Notional     float64
	Maturity     float64
	Counterparty float64
	Currency     float64
	Type         float64
}

// DefaultWeights sum to 1.
var DefaultWeights = Weights{
	Notional:     0.30,
	Maturity:     0.20,
	Counterparty: 0.25,
	Currency:     0.15,
	Type:         0.10,
}

// unknownTypeScore applies to types missing from TypeScores and to an
// exposure with no types at all.
const unknownTypeScore = 30

// TypeScores is the inherent risk of each swap type.
var TypeScores = map[domain.SwapType]float64{
	domain.SwapTypeCreditDefault: 90,
	domain.SwapTypeTotalReturn:   80,
	domain.SwapTypeEquity:        70,
	domain.SwapTypeCommodity:     65,
	domain.SwapTypeCurrency:      50,
	domain.SwapTypeInterestRate:  40,
	domain.SwapTypeOther:         30,
}

// Breakdown holds the sub-scores and the inputs they were derived from.
type Breakdown struct {
	NotionalScore     float64 `json:"notional_score"`
	MaturityScore     float64 `json:"maturity_score"`
	CounterpartyScore float64 `json:"counterparty_score"`
	CurrencyScore     float64 `json:"currency_score"`
	TypeScore         float64 `json:"type_score"`

	AvgYearsToMaturity        float64 `json:"avg_years_to_maturity"`
	CounterpartyConcentration float64 `json:"counterparty_concentration"`
	CurrencyConcentration     float64 `json:"currency_concentration"`
}

// Assessment is a scored exposure.
type Assessment struct {
	Kind     string
	Subject  string
	Score    float64
	Level    string // BandScore(Score)
	Grade    string // GradeScore(Score)
	AsOf     time.Time
	KeyRisks []string

	Breakdown
	Exposure *exposure.Exposure
}

// Snapshot converts a to its history record.
func (a *Assessment) Snapshot() *domain.RiskSnapshot {
	return &domain.RiskSnapshot{
		SubjectKind:       a.Kind,
		Subject:           a.Subject,
		Score:             a.Score,
		Level:             a.Level,
		NotionalScore:     a.NotionalScore,
		MaturityScore:     a.MaturityScore,
		CounterpartyScore: a.CounterpartyScore,
		CurrencyScore:     a.CurrencyScore,
		TypeScore:         a.TypeScore,
		TotalNotional:     a.Exposure.TotalNotional,
		NumSwaps:          a.Exposure.NumSwaps,
		ScoredAt:          a.AsOf,
	}
}

// ScorerOptions configures a Scorer.
type ScorerOptions struct {
	Weights *Weights         // nil uses DefaultWeights
	Now     func() time.Time // nil uses time.Now
}

// Scorer computes composite risk scores. The clock fixes "today" for the
// time-to-maturity term.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer creates a Scorer.
func NewScorer(opts ScorerOptions) *Scorer {
	s := &Scorer{weights: DefaultWeights, now: time.Now}
	if opts.Weights != nil {
		s.weights = *opts.Weights
	}
	if opts.Now != nil {
		s.now = opts.Now
	}
	return s
}

// Score assesses e.
func (s *Scorer) Score(e *exposure.Exposure) *Assessment {
	asOf := s.now().UTC()
	b := Components(e, asOf)

	composite := b.NotionalScore*s.weights.Notional +
		b.MaturityScore*s.weights.Maturity +
		b.CounterpartyScore*s.weights.Counterparty +
		b.CurrencyScore*s.weights.Currency +
		b.TypeScore*s.weights.Type
	score := decimal.NewFromFloat(clamp(composite)).Round(2).InexactFloat64()

	a := &Assessment{
		Kind:      e.Kind,
		Subject:   e.Subject,
		Score:     score,
		Level:     BandScore(score),
		Grade:     GradeScore(score),
		AsOf:      asOf,
		Breakdown: b,
		Exposure:  e,
	}
	a.KeyRisks = KeyRisks(a)
	return a
}

// Components computes the five clamped sub-scores of e as of asOf.
func Components(e *exposure.Exposure, asOf time.Time) Breakdown {
	var b Breakdown

	b.NotionalScore = clamp(10 * math.Sqrt(math.Max(0, e.TotalNotional)/1_000_000))

	b.AvgYearsToMaturity = avgYearsToMaturity(e.Contracts, asOf)
	b.MaturityScore = clamp(b.AvgYearsToMaturity * 10)

	b.CounterpartyConcentration = exposure.MaxShare(e.ByCounterparty, e.TotalNotional)
	b.CounterpartyScore = clamp(b.CounterpartyConcentration * 100)

	b.CurrencyConcentration = exposure.MaxShare(e.ByCurrency, e.TotalNotional)
	b.CurrencyScore = clamp(b.CurrencyConcentration * 100)

	b.TypeScore = typeScore(e.SwapTypes())
	return b
}

// avgYearsToMaturity averages whole days to maturity over contracts that
// mature after asOf's calendar day. Zero when none do.
func avgYearsToMaturity(contracts []*domain.SwapContract, asOf time.Time) float64 {
	y, m, d := asOf.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var sum float64
	var n int
	for _, c := range contracts {
		days := math.Floor(c.MaturityDate.Sub(today).Hours() / 24)
		if days > 0 {
			sum += days / 365.25
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func typeScore(types []domain.SwapType) float64 {
	if len(types) == 0 {
		return unknownTypeScore
	}
	var sum float64
	for _, t := range types {
		if v, ok := TypeScores[t]; ok {
			sum += v
		} else {
			sum += unknownTypeScore
		}
	}
	return sum / float64(len(types))
}

func clamp(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
