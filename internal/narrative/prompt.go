package narrative

import (
	"fmt"
	"strings"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/risk"
)

// BuildRiskPrompt asks for an executive summary of an assessment.
func BuildRiskPrompt(a *risk.Assessment) string {
	subject := "Reference Entity"
	if a.Kind == exposure.KindCounterparty {
		subject = "Counterparty"
	}

	var b strings.Builder
	b.WriteString("Analyze the following swap portfolio risk report and provide a concise, high-level executive summary.\n")
	b.WriteString("Focus on the overall risk level and the primary contributing factors.\n\n")
	b.WriteString("Risk Report Summary:\n")
	fmt.Fprintf(&b, "- %s: %s\n", subject, a.Subject)
	fmt.Fprintf(&b, "- Overall Risk Score: %.2f/100 (%s)\n", a.Score, a.Level)
	if a.Exposure != nil {
		fmt.Fprintf(&b, "- Total Notional Exposure: %s across %d contracts.\n",
			formatAmount(a.Exposure.TotalNotional), a.Exposure.NumSwaps)
	}
	fmt.Fprintf(&b, "- Counterparty Concentration: %.2f%% (share of notional held with the largest counterparty).\n",
		a.CounterpartyConcentration*100)
	fmt.Fprintf(&b, "- Currency Concentration: %.2f%% (share of notional in the largest currency).\n",
		a.CurrencyConcentration*100)
	fmt.Fprintf(&b, "- Average Time to Maturity: %.2f years.\n", a.AvgYearsToMaturity)
	if len(a.KeyRisks) > 0 {
		b.WriteString("- Key Risks:\n")
		for _, r := range a.KeyRisks {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	b.WriteString("\nExecutive Summary:\n")
	return b.String()
}

// BuildSwapPrompt asks for a plain-language explanation of one contract.
// rows are the read-view rows of that contract; nil when rows is empty.
func BuildSwapPrompt(rows []*domain.ObligationViewRow) string {
	if len(rows) == 0 {
		return ""
	}
	head := rows[0]
	reference := head.ReferenceEntity
	if head.InstrumentIdentifier != nil {
		reference = *head.InstrumentIdentifier
	}

	var b strings.Builder
	b.WriteString("Please provide a clear, plain-language explanation of the following financial swap agreement.\n")
	b.WriteString("Focus on the key parties, their obligations, the underlying asset, and what events trigger payments.\n\n")
	b.WriteString("Swap Details:\n")
	fmt.Fprintf(&b, "- Contract ID: %s\n", head.ContractID)
	fmt.Fprintf(&b, "- Swap Type: %s\n", head.SwapType)
	fmt.Fprintf(&b, "- Counterparty: %s\n", head.Counterparty)
	fmt.Fprintf(&b, "- Reference Entity/Security: %s\n", reference)
	fmt.Fprintf(&b, "- Notional Amount: %s %s\n", head.Currency, formatAmount(head.NotionalAmount))
	fmt.Fprintf(&b, "- Effective Date: %s\n", head.EffectiveDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Maturity Date: %s\n\n", head.MaturityDate.Format("2006-01-02"))

	b.WriteString("Key Obligations:\n")
	seen := make(map[int64]bool)
	listed := 0
	for _, r := range rows {
		if r.ObligationID == nil || seen[*r.ObligationID] {
			continue
		}
		seen[*r.ObligationID] = true
		listed++

		due := "Contingent"
		if r.DueDate != nil {
			due = r.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "- Obligation: %s\n", deref(r.ObligationType, "N/A"))
		fmt.Fprintf(&b, "  - Amount: %s %s\n", deref(r.ObligationCurrency, head.Currency), formatAmount(derefFloat(r.ObligationAmount)))
		fmt.Fprintf(&b, "  - Due Date: %s\n", due)
		fmt.Fprintf(&b, "  - Trigger Condition: %s\n", deref(r.TriggerCondition, "N/A"))
	}
	if listed == 0 {
		b.WriteString("- No specific obligations listed.\n")
	}
	b.WriteString("\nExplanation:\n")
	return b.String()
}

// formatAmount renders v with thousands separators and two decimals.
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
