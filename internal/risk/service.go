package risk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/observability"
	"swap-risk-lab/internal/storage"
)

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// History receives one snapshot per assessment when set.
	History storage.RiskHistoryStore
	Logger  *zap.Logger
}

// Service assesses subjects and persists the results.
type Service struct {
	aggregator *exposure.Aggregator
	scorer     *Scorer
	analyses   storage.AnalysisStore
	history    storage.RiskHistoryStore
	logger     *zap.Logger
}

// NewService creates a Service.
func NewService(agg *exposure.Aggregator, scorer *Scorer, analyses storage.AnalysisStore, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		aggregator: agg,
		scorer:     scorer,
		analyses:   analyses,
		history:    opts.History,
		logger:     opts.Logger,
	}
}

// Aggregator returns the exposure aggregator the service reads through.
func (s *Service) Aggregator() *exposure.Aggregator {
	return s.aggregator
}

// AssessEntity scores the contracts referencing entity.
// Returns exposure.ErrNoData if none match.
func (s *Service) AssessEntity(ctx context.Context, entity string) (*Assessment, error) {
	return s.Assess(ctx, exposure.KindEntity, entity)
}

// AssessCounterparty scores the contracts held with name.
// Returns exposure.ErrNoData if none match.
func (s *Service) AssessCounterparty(ctx context.Context, name string) (*Assessment, error) {
	return s.Assess(ctx, exposure.KindCounterparty, name)
}

// Assess scores subject, upserts an analysis row for every matched
// contract and appends the score to the history store.
func (s *Service) Assess(ctx context.Context, kind, subject string) (*Assessment, error) {
	e, err := s.aggregator.Exposure(ctx, kind, subject)
	if err != nil {
		return nil, err
	}

	a := s.scorer.Score(e)
	observability.RecordAssessment(kind, a.Level, a.Score)

	text := fmt.Sprintf("%s %s: risk score %.2f (%s, %s) over %d swaps",
		kind, subject, a.Score, a.Level, a.Grade, e.NumSwaps)
	for _, c := range e.Contracts {
		err := s.analyses.SaveAnalysis(ctx, &domain.SwapAnalysis{
			SwapID:       c.ID,
			AnalysisText: text,
			RiskScore:    a.Score,
			KeyRisks:     a.KeyRisks,
		})
		if err != nil {
			return nil, fmt.Errorf("save analysis for %s: %w", c.ContractID, err)
		}
	}

	if s.history != nil {
		if err := s.history.Insert(ctx, a.Snapshot()); err != nil {
			// History is advisory; the analysis rows are already saved.
			s.logger.Warn("append risk history failed",
				zap.String("kind", kind), zap.String("subject", subject), zap.Error(err))
		}
	}

	s.logger.Info("assessed",
		zap.String("kind", kind),
		zap.String("subject", subject),
		zap.Float64("score", a.Score),
		zap.String("level", a.Level),
		zap.Int("swaps", e.NumSwaps),
	)
	return a, nil
}
