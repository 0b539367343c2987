// Package orchestrator runs the assessment sweep.
// It coordinates: verification → entity scoring → counterparty scoring
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/observability"
	"swap-risk-lab/internal/risk"
	"swap-risk-lab/internal/storage"
	"swap-risk-lab/internal/verification"
)

// Orchestrator scores every reference entity and counterparty in the store.
type Orchestrator struct {
	store    storage.ContractStore
	service  *risk.Service
	verifier *verification.DerivationVerifier
	repair   bool
	now      func() time.Time
	logger   *zap.Logger
}

// Options for creating Orchestrator.
type Options struct {
	Store   storage.ContractStore
	Service *risk.Service

	// Verifier, when set, checks derived rows before scoring.
	Verifier *verification.DerivationVerifier
	Repair   bool // repair divergent contracts instead of only reporting them

	Now    func() time.Time
	Logger *zap.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		store:    opts.Store,
		service:  opts.Service,
		verifier: opts.Verifier,
		repair:   opts.Repair,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// Summary contains results from one sweep. Assessments are ordered by
// score descending, then subject.
type Summary struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	Contracts      int
	Entities       []*risk.Assessment
	Counterparties []*risk.Assessment
	Verification   *verification.VerificationReport // nil when no verifier is configured
	Errors         []string
}

// Top returns at most n assessments of kind.
func (s *Summary) Top(kind string, n int) []*risk.Assessment {
	list := s.Entities
	if kind == exposure.KindCounterparty {
		list = s.Counterparties
	}
	if n > len(list) {
		n = len(list)
	}
	return list[:n]
}

// Run executes the sweep.
// Phases:
//  1. Load contracts
//  2. Verify (and optionally repair) derived rows
//  3. Score each distinct reference entity
//  4. Score each distinct counterparty
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{StartedAt: o.now()}

	// Phase 1: Load all contracts
	contracts, err := o.store.ListContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load contracts) failed: %w", err)
	}
	summary.Contracts = len(contracts)
	o.logger.Debug("contracts loaded", zap.Int("contracts", len(contracts)))

	if len(contracts) == 0 {
		summary.FinishedAt = o.now()
		return summary, nil
	}

	// Phase 2: Verification
	if o.verifier != nil {
		var report *verification.VerificationReport
		if o.repair {
			report, err = o.verifier.RepairAll(ctx)
		} else {
			report, err = o.verifier.VerifyAll(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("phase 2 (verification) failed: %w", err)
		}
		summary.Verification = report
	}

	// Phase 3 and 4: Scoring
	entities := distinct(contracts, func(c *domain.SwapContract) string { return c.ReferenceEntity })
	counterparties := distinct(contracts, func(c *domain.SwapContract) string { return c.Counterparty })

	var errs []string
	summary.Entities, errs = o.assessAll(ctx, exposure.KindEntity, entities)
	summary.Errors = append(summary.Errors, errs...)
	summary.Counterparties, errs = o.assessAll(ctx, exposure.KindCounterparty, counterparties)
	summary.Errors = append(summary.Errors, errs...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary.FinishedAt = o.now()
	observability.RecordSweep()
	o.logger.Info("sweep completed",
		zap.Int("contracts", summary.Contracts),
		zap.Int("entities", len(summary.Entities)),
		zap.Int("counterparties", len(summary.Counterparties)),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

// RunEvery runs the sweep immediately and then on every tick of interval
// until ctx is done. Sweep errors are logged and do not stop the loop.
func (o *Orchestrator) RunEvery(ctx context.Context, interval time.Duration, onSummary func(*Summary)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		summary, err := o.Run(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			o.logger.Error("sweep failed", zap.Error(err))
		case err == nil && onSummary != nil:
			onSummary(summary)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) assessAll(ctx context.Context, kind string, subjects []string) ([]*risk.Assessment, []string) {
	var out []*risk.Assessment
	var errs []string

	for _, subject := range subjects {
		if ctx.Err() != nil {
			break
		}
		a, err := o.service.Assess(ctx, kind, subject)
		if err != nil {
			// Skip subjects deleted since the contracts were listed
			if errors.Is(err, exposure.ErrNoData) {
				continue
			}
			errs = append(errs, fmt.Sprintf("assess %s %s: %v", kind, subject, err))
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Subject < out[j].Subject
	})
	return out, errs
}

// distinct returns the non-blank values of key, deduplicated
// case-insensitively, keeping the first spelling seen.
func distinct(contracts []*domain.SwapContract, key func(*domain.SwapContract) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range contracts {
		v := key(c)
		k := domain.NormalizeName(v)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
