// Package verification checks that the obligations stored for each contract
// still match what derivation produces from the stored contract, and
// repairs contracts left with partial or stale derived rows.
package verification

import (
	"fmt"
	"math"
	"time"

	"swap-risk-lab/internal/derivation"
	"swap-risk-lab/internal/domain"
)

// AmountTolerance is the tolerance for obligation amount comparisons.
const AmountTolerance = 0.005

// FieldDivergence represents a mismatch between stored and derived values.
type FieldDivergence struct {
	Field    string // e.g. "obligations", "obligations[1].amount"
	Expected any    // derived value
	Actual   any    // stored value
}

// VerificationResult contains the result of verifying a single contract.
type VerificationResult struct {
	ContractID    string
	Match         bool
	Divergences   []FieldDivergence
	StoredDigest  string
	DerivedDigest string
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalContracts     int
	MatchedContracts   int
	DivergentContracts int
	Repaired           int // set by RepairAll
	Results            []VerificationResult
}

// Divergent returns the ids of contracts that did not match.
func (r *VerificationReport) Divergent() []string {
	var ids []string
	for _, res := range r.Results {
		if !res.Match {
			ids = append(ids, res.ContractID)
		}
	}
	return ids
}

// CompareObligations compares stored obligations and their trigger counts
// against a fresh derivation. Obligations are compared in insertion order.
func CompareObligations(stored []*domain.SwapObligation, storedTriggers []int, derived *derivation.Result) []FieldDivergence {
	var divergences []FieldDivergence

	if len(stored) != len(derived.Obligations) {
		return append(divergences, FieldDivergence{
			Field:    "obligations",
			Expected: len(derived.Obligations),
			Actual:   len(stored),
		})
	}

	for i, want := range derived.Obligations {
		got := stored[i]
		field := func(name string) string { return fmt.Sprintf("obligations[%d].%s", i, name) }

		if got.Type != want.Type {
			divergences = append(divergences, FieldDivergence{Field: field("type"), Expected: want.Type, Actual: got.Type})
		}
		if math.Abs(got.Amount-want.Amount) > AmountTolerance {
			divergences = append(divergences, FieldDivergence{Field: field("amount"), Expected: want.Amount, Actual: got.Amount})
		}
		if got.Currency != want.Currency {
			divergences = append(divergences, FieldDivergence{Field: field("currency"), Expected: want.Currency, Actual: got.Currency})
		}
		if !sameDay(got.DueDate, want.DueDate) {
			divergences = append(divergences, FieldDivergence{Field: field("due_date"), Expected: formatDue(want.DueDate), Actual: formatDue(got.DueDate)})
		}

		wantTriggers := len(derived.Triggers[i])
		gotTriggers := 0
		if i < len(storedTriggers) {
			gotTriggers = storedTriggers[i]
		}
		if gotTriggers != wantTriggers {
			divergences = append(divergences, FieldDivergence{Field: field("triggers"), Expected: wantTriggers, Actual: gotTriggers})
		}
	}

	return divergences
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func formatDue(d *time.Time) string {
	if d == nil {
		return "contingent"
	}
	return d.Format("2006-01-02")
}
