// Package derivation produces the payment obligations, activation triggers
// and underlying instruments implied by a swap contract.
package derivation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"swap-risk-lab/internal/domain"
)

// DefaultPremiumRate is the placeholder CDS premium as a fraction of notional.
const DefaultPremiumRate = 0.01

// InstrumentSpec describes an underlying instrument before its reference
// security has been resolved.
type InstrumentSpec struct {
	Identifier     string
	InstrumentType string
	Description    string
	Quantity       *float64
	Notional       *float64
	Currency       string
}

// Result is the derived graph of a contract. Triggers are keyed by the index
// of their obligation in Obligations.
type Result struct {
	Obligations []*domain.SwapObligation
	Triggers    map[int][]*domain.ObligationTrigger
	Instruments []InstrumentSpec
}

// TriggerCount returns the total number of triggers.
func (r *Result) TriggerCount() int {
	n := 0
	for _, ts := range r.Triggers {
		n += len(ts)
	}
	return n
}

// Derive applies the per-type rules to c and appends any explicit
// obligations, triggers and instruments found in its additional terms.
// It is a pure function of the contract.
func Derive(c *domain.SwapContract) *Result {
	res := &Result{Triggers: make(map[int][]*domain.ObligationTrigger)}

	obligations := typeObligations(c)
	obligations = append(obligations, explicitObligations(c)...)

	sharedTriggers := explicitTriggers(c.AdditionalTerms)
	for i, ob := range obligations {
		res.Obligations = append(res.Obligations, ob.obligation)

		triggers := defaultTriggers(c, ob.obligation)
		triggers = append(triggers, ob.triggers...)
		for _, st := range sharedTriggers {
			if st.index == nil || *st.index == i {
				t := *st.trigger
				triggers = append(triggers, &t)
			}
		}
		if len(triggers) > 0 {
			res.Triggers[i] = triggers
		}
	}

	res.Instruments = deriveInstruments(c)
	return res
}

type derivedObligation struct {
	obligation *domain.SwapObligation
	triggers   []*domain.ObligationTrigger
}

func typeObligations(c *domain.SwapContract) []derivedObligation {
	firstDue := NextPaymentDate(c.EffectiveDate, c.PaymentFrequency)
	notional := decimal.NewFromFloat(c.NotionalAmount)

	pending := func(typ string, amount decimal.Decimal, desc string) derivedObligation {
		due := firstDue
		return derivedObligation{obligation: &domain.SwapObligation{
			Type:        typ,
			Amount:      amount.Round(2).InexactFloat64(),
			Currency:    c.Currency,
			DueDate:     &due,
			Status:      domain.StatusPending,
			Description: desc,
		}}
	}

	var out []derivedObligation
	switch c.SwapType {
	case domain.SwapTypeInterestRate:
		if c.FixedRate != nil && *c.FixedRate != 0 {
			amount := notional.
				Mul(decimal.NewFromFloat(*c.FixedRate)).
				Div(decimal.NewFromInt(100)).
				Div(decimal.NewFromInt(int64(PaymentsPerYear(c.PaymentFrequency))))
			out = append(out, pending(domain.ObligationFixedPayment, amount,
				fmt.Sprintf("Fixed rate payment at %s%%", formatRate(*c.FixedRate))))
		}
		if c.FloatingRateIndex != nil && *c.FloatingRateIndex != "" {
			out = append(out, pending(domain.ObligationFloatingPayment, decimal.Zero,
				"Floating rate payment based on "+*c.FloatingRateIndex))
		}

	case domain.SwapTypeCreditDefault:
		premium := notional.Mul(decimal.NewFromFloat(PremiumRate(c)))
		out = append(out, pending(domain.ObligationPremiumPayment, premium,
			"Credit default swap premium payment"))
		out = append(out, derivedObligation{obligation: &domain.SwapObligation{
			Type:        domain.ObligationProtectionPayment,
			Amount:      c.NotionalAmount,
			Currency:    c.Currency,
			DueDate:     nil,
			Status:      domain.StatusContingent,
			Description: "Protection payment upon credit event",
		}})

	case domain.SwapTypeTotalReturn:
		out = append(out, pending(domain.ObligationTotalReturnPayment, decimal.Zero,
			"Total return payment on "+c.ReferenceEntity))
	}
	return out
}

// PremiumRate returns the CDS premium as a fraction of notional. The
// additional term "premium_rate" overrides the default; values above 1 are
// read as percentages.
func PremiumRate(c *domain.SwapContract) float64 {
	rate, ok := c.AdditionalTerms.Float("premium_rate")
	if !ok || rate <= 0 {
		return DefaultPremiumRate
	}
	if rate > 1 {
		return rate / 100
	}
	return rate
}

// defaultTriggers returns the triggers implied by an obligation's type.
func defaultTriggers(c *domain.SwapContract, ob *domain.SwapObligation) []*domain.ObligationTrigger {
	switch ob.Type {
	case domain.ObligationProtectionPayment:
		return []*domain.ObligationTrigger{{
			Type:        domain.TriggerCreditEvent,
			Condition:   fmt.Sprintf("credit_event(%s) = true", c.ReferenceEntity),
			Description: "Credit event on " + c.ReferenceEntity,
			IsActive:    true,
		}}
	case domain.ObligationFixedPayment, domain.ObligationFloatingPayment, domain.ObligationPremiumPayment:
		due := "TBD"
		if ob.DueDate != nil {
			due = ob.DueDate.Format("2006-01-02")
		}
		return []*domain.ObligationTrigger{{
			Type:        domain.TriggerTimeBased,
			Condition:   "date >= " + due,
			Description: "Payment due on " + due,
			IsActive:    true,
		}}
	case domain.ObligationTotalReturnPayment:
		return []*domain.ObligationTrigger{{
			Type:        domain.TriggerPerformance,
			Condition:   fmt.Sprintf("performance(%s) != 0", c.ReferenceEntity),
			Description: "Performance change in " + c.ReferenceEntity,
			IsActive:    true,
		}}
	}
	return nil
}

// explicitObligations reads additional_terms.obligations. Entries that are
// not objects are ignored.
func explicitObligations(c *domain.SwapContract) []derivedObligation {
	var out []derivedObligation
	for _, entry := range c.AdditionalTerms.List("obligations") {
		terms := domain.Terms(entry)
		ob := &domain.SwapObligation{
			Type:     firstString(terms, "custom", "obligation_type", "type"),
			Currency: firstString(terms, c.Currency, "currency"),
			Status:   firstString(terms, domain.StatusPending, "status"),
		}
		ob.Description, _ = terms.String("description")
		if amount, ok := terms.Float("amount"); ok {
			ob.Amount = amount
		}
		if s, ok := terms.String("due_date"); ok {
			if due, err := time.Parse("2006-01-02", strings.TrimSpace(s)); err == nil {
				ob.DueDate = &due
			}
		}

		var triggers []*domain.ObligationTrigger
		for _, t := range terms.List("triggers") {
			triggers = append(triggers, triggerFromTerms(domain.Terms(t)))
		}
		out = append(out, derivedObligation{obligation: ob, triggers: triggers})
	}
	return out
}

type sharedTrigger struct {
	index   *int
	trigger *domain.ObligationTrigger
}

// explicitTriggers reads additional_terms.triggers. An entry with an
// "obligation_index" attaches to that obligation only; otherwise it attaches
// to every obligation of the contract.
func explicitTriggers(terms domain.Terms) []sharedTrigger {
	var out []sharedTrigger
	for _, entry := range terms.List("triggers") {
		t := domain.Terms(entry)
		st := sharedTrigger{trigger: triggerFromTerms(t)}
		if idx, ok := t.Float("obligation_index"); ok && idx >= 0 {
			i := int(idx)
			st.index = &i
		}
		out = append(out, st)
	}
	return out
}

func triggerFromTerms(t domain.Terms) *domain.ObligationTrigger {
	trig := &domain.ObligationTrigger{
		Type:      firstString(t, domain.TriggerCustom, "trigger_type", "type"),
		Condition: firstString(t, "", "trigger_condition", "condition"),
		IsActive:  true,
	}
	trig.Description, _ = t.String("description")
	if active, ok := t["is_active"].(bool); ok {
		trig.IsActive = active
	}
	return trig
}

func deriveInstruments(c *domain.SwapContract) []InstrumentSpec {
	var out []InstrumentSpec
	if c.ReferenceEntity != "" {
		notional := c.NotionalAmount
		out = append(out, InstrumentSpec{
			Identifier:     c.ReferenceEntity,
			InstrumentType: InstrumentType(c.ReferenceEntity),
			Description:    fmt.Sprintf("Reference entity for %s swap", c.SwapType),
			Notional:       &notional,
			Currency:       c.Currency,
		})
	}

	raw, _ := c.AdditionalTerms["underlying_instruments"].([]any)
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			out = append(out, InstrumentSpec{
				Identifier:     strings.TrimSpace(v),
				InstrumentType: InstrumentType(v),
				Description:    fmt.Sprintf("Underlying instrument for %s swap", c.SwapType),
				Currency:       c.Currency,
			})
		case map[string]any:
			t := domain.Terms(v)
			id := firstString(t, "", "identifier", "id")
			if id == "" {
				continue
			}
			spec := InstrumentSpec{
				Identifier:     id,
				InstrumentType: firstString(t, InstrumentType(id), "instrument_type", "type"),
				Currency:       firstString(t, c.Currency, "currency"),
			}
			spec.Description, _ = t.String("description")
			if q, ok := t.Float("quantity"); ok {
				spec.Quantity = &q
			}
			if n, ok := t.Float("notional_amount"); ok {
				spec.Notional = &n
			} else if n, ok := t.Float("notional"); ok {
				spec.Notional = &n
			}
			out = append(out, spec)
		}
	}
	return out
}

// InstrumentType classifies an identifier: short alphabetic tickers are
// equities, identifiers mentioning INDEX or IDX are indices, 9 and 12
// character alphanumerics are bonds (CUSIP and ISIN).
func InstrumentType(identifier string) string {
	id := strings.ToUpper(strings.TrimSpace(identifier))
	switch {
	case id == "":
		return domain.InstrumentOther
	case len(id) <= 5 && isAlpha(id):
		return domain.InstrumentEquity
	case strings.Contains(id, "INDEX") || strings.Contains(id, "IDX"):
		return domain.InstrumentIndex
	case (len(id) == 9 || len(id) == 12) && isAlnum(id):
		return domain.InstrumentBond
	default:
		return domain.InstrumentOther
	}
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func firstString(t domain.Terms, fallback string, keys ...string) string {
	for _, k := range keys {
		if s, ok := t.String(k); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return fallback
}

// formatRate renders a rate with at least one decimal place (4 -> "4.0").
func formatRate(r float64) string {
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
