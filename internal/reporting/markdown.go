package reporting

import (
	"fmt"
	"strings"
	"time"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
)

const dateLayout = "2006-01-02"

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *RiskReport) string {
	var sb strings.Builder

	// Header
	title := "Reference Entity"
	if r.Kind == exposure.KindCounterparty {
		title = "Counterparty"
	}
	sb.WriteString(fmt.Sprintf("# Risk Report: %s\n\n", r.Subject))
	sb.WriteString(fmt.Sprintf("Generated: %s | %s\n\n", r.GeneratedAt.Format(time.RFC3339), title))

	// Score
	sb.WriteString("## Risk Score\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Risk Score | %.2f / 100 |\n", r.Score))
	sb.WriteString(fmt.Sprintf("| Risk Level | %s |\n", r.Level))
	sb.WriteString(fmt.Sprintf("| Risk Grade | %s |\n", r.Grade))
	sb.WriteString(fmt.Sprintf("| Notional Score | %.2f |\n", r.Components.NotionalScore))
	sb.WriteString(fmt.Sprintf("| Maturity Score | %.2f |\n", r.Components.MaturityScore))
	sb.WriteString(fmt.Sprintf("| Counterparty Score | %.2f |\n", r.Components.CounterpartyScore))
	sb.WriteString(fmt.Sprintf("| Currency Score | %.2f |\n", r.Components.CurrencyScore))
	sb.WriteString(fmt.Sprintf("| Swap Type Score | %.2f |\n", r.Components.TypeScore))
	sb.WriteString("\n")

	if len(r.KeyRisks) > 0 {
		sb.WriteString("### Key Risks\n\n")
		for _, k := range r.KeyRisks {
			sb.WriteString(fmt.Sprintf("- %s\n", k))
		}
		sb.WriteString("\n")
	}

	// Exposure
	sb.WriteString("## Exposure\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Notional | %.2f |\n", r.TotalNotional))
	sb.WriteString(fmt.Sprintf("| Contracts | %d |\n", r.NumSwaps))
	sb.WriteString(fmt.Sprintf("| Average Notional | %.2f |\n", r.AvgNotional))
	sb.WriteString(fmt.Sprintf("| Average Years to Maturity | %.2f |\n", r.Components.AvgYearsToMaturity))
	sb.WriteString(fmt.Sprintf("| Earliest Maturity | %s |\n", r.EarliestMaturity.Format(dateLayout)))
	sb.WriteString(fmt.Sprintf("| Latest Maturity | %s |\n", r.LatestMaturity.Format(dateLayout)))
	if r.Largest != nil {
		sb.WriteString(fmt.Sprintf("| Largest Contract | %s (%.2f) |\n", r.Largest.ContractID, r.Largest.NotionalAmount))
	}
	sb.WriteString("\n")

	writeShares(&sb, "By Swap Type", "Swap Type", r.BySwapType)
	writeShares(&sb, "By Currency", "Currency", r.ByCurrency)
	writeShares(&sb, "By Counterparty", "Counterparty", r.ByCounterparty)

	// Counterparty analysis
	if a := r.Counterparty; a != nil {
		sb.WriteString("## Counterparty Analysis\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Reference Entities | %s |\n", strings.Join(a.ReferenceEntities, ", ")))
		sb.WriteString(fmt.Sprintf("| Max Entity Exposure | %.2f |\n", a.MaxEntityExposure))
		sb.WriteString(fmt.Sprintf("| Concentration | %.2f%% (%s) |\n", a.ConcentrationRatio*100, a.ConcentrationLevel))
		sb.WriteString(fmt.Sprintf("| Average Days to Maturity | %.1f |\n", a.AvgDaysToMaturity))
		for _, k := range []string{"credit_default", "interest_rate", "total_return", "other"} {
			sb.WriteString(fmt.Sprintf("| %s swaps | %d |\n", k, a.SwapTypeCounts[k]))
		}
		sb.WriteString("\n")
		if len(a.CollateralTerms) > 0 {
			sb.WriteString("### Collateral Terms\n\n")
			for _, c := range a.CollateralTerms {
				sb.WriteString(fmt.Sprintf("- `%s`\n", c))
			}
			sb.WriteString("\n")
		}
	}

	// Detailed analysis
	if d := r.Detailed; d != nil && len(d.MetricsByType) > 0 {
		sb.WriteString("## Detailed Analysis\n\n")
		sb.WriteString("| Swap Type | Count | Total | Average | Fixed | Floating | Min Maturity | Max Maturity |\n")
		sb.WriteString("|-----------|-------|-------|---------|-------|----------|--------------|--------------|\n")
		for _, t := range sortedTypes(d.MetricsByType) {
			m := d.MetricsByType[t]
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f | %d | %d | %s | %s |\n",
				t, m.Count, m.TotalNotional, m.AvgNotional, m.FixedRateSwaps, m.FloatingRateSwaps,
				m.MinMaturity.Format(dateLayout), m.MaxMaturity.Format(dateLayout)))
		}
		sb.WriteString("\n")
		writeShares(&sb, "Top Counterparties", "Counterparty", d.TopCounterparties)
	}

	// Obligations
	sb.WriteString("## Obligations\n\n")
	if len(r.Obligations) > 0 {
		writeObligations(&sb, r.Obligations)
	} else {
		sb.WriteString("No obligations recorded.\n\n")
	}

	if r.Narrative != "" {
		sb.WriteString("## Narrative\n\n")
		sb.WriteString(r.Narrative)
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderObligationsMarkdown renders read-view rows as a Markdown table.
func RenderObligationsMarkdown(rows []*domain.ObligationViewRow) string {
	var sb strings.Builder
	sb.WriteString("# Obligations\n\n")
	if len(rows) == 0 {
		sb.WriteString("No obligations recorded.\n")
		return sb.String()
	}
	writeObligations(&sb, rows)
	return sb.String()
}

// RenderContractsMarkdown renders contracts as a Markdown table.
func RenderContractsMarkdown(contracts []*domain.SwapContract) string {
	var sb strings.Builder
	sb.WriteString("# Contracts\n\n")
	if len(contracts) == 0 {
		sb.WriteString("No contracts stored.\n")
		return sb.String()
	}
	sb.WriteString("| Contract | Counterparty | Reference Entity | Type | Notional | Currency | Effective | Maturity |\n")
	sb.WriteString("|----------|--------------|------------------|------|----------|----------|-----------|----------|\n")
	for _, c := range contracts {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.2f | %s | %s | %s |\n",
			c.ContractID, c.Counterparty, c.ReferenceEntity, c.SwapType, c.NotionalAmount, c.Currency,
			c.EffectiveDate.Format(dateLayout), c.MaturityDate.Format(dateLayout)))
	}
	return sb.String()
}

func writeShares(sb *strings.Builder, heading, column string, rows []exposure.Share) {
	if len(rows) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("### %s\n\n", heading))
	sb.WriteString(fmt.Sprintf("| %s | Notional | Share |\n", column))
	sb.WriteString("|---|---|---|\n")
	for _, s := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %.2f | %.2f%% |\n", s.Name, s.Notional, s.Percentage))
	}
	sb.WriteString("\n")
}

func writeObligations(sb *strings.Builder, rows []*domain.ObligationViewRow) {
	sb.WriteString("| Contract | Obligation | Amount | Currency | Due | Status | Instrument | Trigger |\n")
	sb.WriteString("|----------|------------|--------|----------|-----|--------|------------|---------|\n")
	for _, r := range rows {
		o := toObligationRow(r)
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			o.ContractID, dash(o.ObligationType), dash(o.ObligationAmount), dash(o.ObligationCurrency),
			dash(o.DueDate), dash(o.ObligationStatus), dash(o.InstrumentIdentifier), dash(o.TriggerCondition)))
	}
	sb.WriteString("\n")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
