// Package resolver maps counterparty names and instrument identifiers to
// their lookup rows, creating them on first sight.
package resolver

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/observability"
	"swap-risk-lab/internal/storage"
)

// maxAttempts bounds retries when a concurrent insert wins the unique index.
const maxAttempts = 3

// Options configures a Resolver.
type Options struct {
	Logger *zap.Logger
	// DisableCache forces every call through to the store.
	DisableCache bool
}

// Resolver deduplicates lookup entities case-insensitively. Concurrent calls
// for the same name share one store round trip, and resolved rows are cached
// because lookup entities are never deleted.
type Resolver struct {
	store  storage.EntityStore
	logger *zap.Logger
	cache  bool

	group singleflight.Group

	mu             sync.RWMutex
	counterparties map[string]*domain.Counterparty
	securities     map[string]*domain.ReferenceSecurity
}

// New creates a Resolver over store.
func New(store storage.EntityStore, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		store:          store,
		logger:         opts.Logger,
		cache:          !opts.DisableCache,
		counterparties: make(map[string]*domain.Counterparty),
		securities:     make(map[string]*domain.ReferenceSecurity),
	}
}

// GetOrCreateCounterparty returns the counterparty named name, creating it
// if absent. Blank names return storage.ErrInvalidInput.
func (r *Resolver) GetOrCreateCounterparty(ctx context.Context, name string) (*domain.Counterparty, error) {
	key := domain.NormalizeName(name)
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	if cp := r.cachedCounterparty(key); cp != nil {
		observability.RecordResolution("counterparty", "cache")
		return cp, nil
	}

	v, err, shared := r.group.Do("cp:"+key, func() (any, error) {
		cp, err := retryDuplicate(ctx, func() (*domain.Counterparty, error) {
			return r.store.GetOrCreateCounterparty(ctx, name)
		})
		if err != nil {
			return nil, err
		}
		r.storeCounterparty(key, cp)
		return cp, nil
	})
	if err != nil {
		observability.RecordResolution("counterparty", "error")
		r.logger.Warn("resolve counterparty failed", zap.String("name", name), zap.Error(err))
		return nil, err
	}

	observability.RecordResolution("counterparty", outcome(shared))
	cp := *v.(*domain.Counterparty)
	return &cp, nil
}

// GetOrCreateSecurity returns the reference security with identifier,
// creating it if absent. Blank identifiers return storage.ErrInvalidInput.
func (r *Resolver) GetOrCreateSecurity(ctx context.Context, identifier string) (*domain.ReferenceSecurity, error) {
	key := domain.NormalizeName(identifier)
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	if sec := r.cachedSecurity(key); sec != nil {
		observability.RecordResolution("security", "cache")
		return sec, nil
	}

	v, err, shared := r.group.Do("sec:"+key, func() (any, error) {
		sec, err := retryDuplicate(ctx, func() (*domain.ReferenceSecurity, error) {
			return r.store.GetOrCreateSecurity(ctx, identifier)
		})
		if err != nil {
			return nil, err
		}
		r.storeSecurity(key, sec)
		return sec, nil
	})
	if err != nil {
		observability.RecordResolution("security", "error")
		r.logger.Warn("resolve security failed", zap.String("identifier", identifier), zap.Error(err))
		return nil, err
	}

	observability.RecordResolution("security", outcome(shared))
	sec := *v.(*domain.ReferenceSecurity)
	return &sec, nil
}

// Reset drops every cached row.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counterparties = make(map[string]*domain.Counterparty)
	r.securities = make(map[string]*domain.ReferenceSecurity)
}

// retryDuplicate re-runs fn while it reports ErrDuplicateKey. A duplicate
// means another writer created the row between our insert and select, so
// the next attempt finds it.
func retryDuplicate[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		v, err = fn()
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return v, err
		}
		if ctx.Err() != nil {
			return v, ctx.Err()
		}
	}
	return v, err
}

func outcome(shared bool) string {
	if shared {
		return "shared"
	}
	return "store"
}

func (r *Resolver) cachedCounterparty(key string) *domain.Counterparty {
	if !r.cache {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cp, ok := r.counterparties[key]; ok {
		out := *cp
		return &out
	}
	return nil
}

func (r *Resolver) storeCounterparty(key string, cp *domain.Counterparty) {
	if !r.cache {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counterparties[key] = cp
}

func (r *Resolver) cachedSecurity(key string) *domain.ReferenceSecurity {
	if !r.cache {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sec, ok := r.securities[key]; ok {
		out := *sec
		return &out
	}
	return nil
}

func (r *Resolver) storeSecurity(key string, sec *domain.ReferenceSecurity) {
	if !r.cache {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.securities[key] = sec
}
