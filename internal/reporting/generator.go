package reporting

import (
	"context"
	"fmt"
	"time"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/narrative"
	"swap-risk-lab/internal/risk"
	"swap-risk-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	service     *risk.Service
	obligations storage.ObligationStore
	narrator    narrative.Generator
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(service *risk.Service, obligations storage.ObligationStore) *Generator {
	return &Generator{
		service:     service,
		obligations: obligations,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithNarrator sets the text generator used for narratives.
func (g *Generator) WithNarrator(n narrative.Generator) *Generator {
	g.narrator = n
	return g
}

// Generate assesses subject and assembles its report. The assessment is
// persisted as a side effect. Returns exposure.ErrNoData if nothing matches.
func (g *Generator) Generate(ctx context.Context, kind, subject string, withNarrative bool) (*RiskReport, error) {
	a, err := g.service.Assess(ctx, kind, subject)
	if err != nil {
		return nil, err
	}
	e := a.Exposure

	report := &RiskReport{
		GeneratedAt:      g.now(),
		Kind:             kind,
		Subject:          subject,
		Score:            a.Score,
		Level:            a.Level,
		Grade:            a.Grade,
		Components:       a.Breakdown,
		KeyRisks:         a.KeyRisks,
		TotalNotional:    e.TotalNotional,
		NumSwaps:         e.NumSwaps,
		AvgNotional:      e.AvgNotional,
		EarliestMaturity: e.EarliestMaturity,
		LatestMaturity:   e.LatestMaturity,
		BySwapType:       swapTypeShares(e),
		ByCurrency:       exposure.Ranked(e.ByCurrency, e.TotalNotional),
		ByCounterparty:   exposure.Ranked(e.ByCounterparty, e.TotalNotional),
		Largest:          e.Largest,
		Detailed:         exposure.Detailed(e),
	}

	if kind == exposure.KindCounterparty {
		analysis, err := exposure.AnalyzeCounterparty(subject, e.Contracts, g.now())
		if err != nil {
			return nil, err
		}
		report.Counterparty = analysis
	}

	for _, c := range e.Contracts {
		rows, err := g.obligations.ObligationsView(ctx, c.ContractID)
		if err != nil {
			return nil, fmt.Errorf("obligations of %s: %w", c.ContractID, err)
		}
		report.Obligations = append(report.Obligations, rows...)
	}

	if withNarrative {
		report.Narrative = narrative.Summarize(ctx, g.narrator, narrative.BuildRiskPrompt(a), narrative.RiskSummaryTokens)
	}
	return report, nil
}

// ExplainContract returns a narrative explanation of one contract.
func (g *Generator) ExplainContract(ctx context.Context, contractID string) (string, error) {
	rows, err := g.obligations.ObligationsView(ctx, contractID)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", storage.ErrNotFound
	}
	return narrative.Summarize(ctx, g.narrator, narrative.BuildSwapPrompt(rows), narrative.SwapExplainTokens), nil
}

func swapTypeShares(e *exposure.Exposure) []exposure.Share {
	out := make([]exposure.Share, 0, len(e.BySwapType))
	for _, t := range e.SwapTypes() {
		s := exposure.Share{Name: t.String(), Notional: e.BySwapType[t]}
		if e.TotalNotional > 0 {
			s.Percentage = s.Notional / e.TotalNotional * 100
		}
		out = append(out, s)
	}
	return out
}

// sortedTypes returns the keys of m in AllSwapTypes order.
func sortedTypes(m map[domain.SwapType]*exposure.TypeMetrics) []domain.SwapType {
	var out []domain.SwapType
	for _, t := range domain.AllSwapTypes {
		if _, ok := m[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
