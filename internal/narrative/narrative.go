// Package narrative produces optional plain-language summaries through a
// text-generation service. Every failure degrades to Unavailable.
package narrative

import (
	"context"
	"strings"
	"time"

	"swap-risk-lab/internal/observability"
)

// Unavailable is returned by Summarize whenever no text could be produced.
const Unavailable = "Narrative summary unavailable."

// Token budgets used by the prompt builders' callers.
const (
	RiskSummaryTokens = 256
	SwapExplainTokens = 512
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Summarize asks gen for text and never fails: a nil generator, an error,
// a timeout or blank output all yield Unavailable.
func Summarize(ctx context.Context, gen Generator, prompt string, maxTokens int) string {
	if gen == nil {
		observability.RecordNarrative("disabled", 0)
		return Unavailable
	}

	start := time.Now()
	text, err := gen.Generate(ctx, prompt, maxTokens)
	switch {
	case err != nil:
		observability.RecordNarrative("error", time.Since(start))
		return Unavailable
	case strings.TrimSpace(text) == "":
		observability.RecordNarrative("empty", time.Since(start))
		return Unavailable
	}
	observability.RecordNarrative("ok", time.Since(start))
	return strings.TrimSpace(text)
}
