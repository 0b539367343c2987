package exposure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// Options configures an Aggregator.
type Options struct {
	// Cache, when set, serves reads from a snapshot instead of querying the
	// store on each call.
	Cache *SnapshotCache
	// Now is the clock used for days-to-maturity. Defaults to time.Now.
	Now func() time.Time
}

// Aggregator computes exposure for reference entities and counterparties.
type Aggregator struct {
	store storage.ContractStore
	cache *SnapshotCache
	now   func() time.Time
}

// NewAggregator creates a new Aggregator.
func NewAggregator(store storage.ContractStore, opts Options) *Aggregator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{store: store, cache: opts.Cache, now: opts.Now}
}

// Invalidate drops the snapshot cache if one is configured.
func (a *Aggregator) Invalidate() {
	if a.cache != nil {
		a.cache.Invalidate()
	}
}

// EntityContracts returns contracts whose reference entity contains entity,
// case-insensitively, ordered by contract_id.
func (a *Aggregator) EntityContracts(ctx context.Context, entity string) ([]*domain.SwapContract, error) {
	if a.cache == nil {
		return a.store.FindByReferenceEntity(ctx, entity)
	}
	needle := strings.ToLower(strings.TrimSpace(entity))
	return a.filterCached(ctx, func(c *domain.SwapContract) bool {
		return strings.Contains(strings.ToLower(c.ReferenceEntity), needle)
	})
}

// CounterpartyContracts returns contracts held with the counterparty
// named name, matched case-insensitively.
func (a *Aggregator) CounterpartyContracts(ctx context.Context, name string) ([]*domain.SwapContract, error) {
	if a.cache == nil {
		return a.store.FindByCounterparty(ctx, name)
	}
	key := domain.NormalizeName(name)
	return a.filterCached(ctx, func(c *domain.SwapContract) bool {
		return domain.NormalizeName(c.Counterparty) == key
	})
}

func (a *Aggregator) filterCached(ctx context.Context, keep func(*domain.SwapContract) bool) ([]*domain.SwapContract, error) {
	all, err := a.cache.Contracts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.SwapContract, 0)
	for _, c := range all {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// EntityExposure aggregates the contracts referencing entity.
// Returns ErrNoData if none match.
func (a *Aggregator) EntityExposure(ctx context.Context, entity string) (*Exposure, error) {
	contracts, err := a.EntityContracts(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("load contracts for entity %q: %w", entity, err)
	}
	return Aggregate(KindEntity, entity, contracts)
}

// CounterpartyExposure aggregates the contracts held with name.
// Returns ErrNoData if none match.
func (a *Aggregator) CounterpartyExposure(ctx context.Context, name string) (*Exposure, error) {
	contracts, err := a.CounterpartyContracts(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load contracts for counterparty %q: %w", name, err)
	}
	return Aggregate(KindCounterparty, name, contracts)
}

// Exposure dispatches on kind.
func (a *Aggregator) Exposure(ctx context.Context, kind, subject string) (*Exposure, error) {
	switch kind {
	case KindEntity:
		return a.EntityExposure(ctx, subject)
	case KindCounterparty:
		return a.CounterpartyExposure(ctx, subject)
	default:
		return nil, fmt.Errorf("unknown subject kind %q", kind)
	}
}

// AnalyzeCounterparty computes the concentration and maturity profile of
// the contracts held with name. Returns ErrNoData if none match.
func (a *Aggregator) AnalyzeCounterparty(ctx context.Context, name string) (*CounterpartyAnalysis, error) {
	contracts, err := a.CounterpartyContracts(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load contracts for counterparty %q: %w", name, err)
	}
	return AnalyzeCounterparty(name, contracts, a.now())
}
