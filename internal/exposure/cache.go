package exposure

import (
	"context"
	"sync"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/observability"
	"swap-risk-lab/internal/storage"
)

// SnapshotCache holds every stored contract between writes. Writers must
// call Invalidate after each successful write; the next read reloads.
type SnapshotCache struct {
	store storage.ContractStore

	mu        sync.Mutex
	contracts []*domain.SwapContract
	valid     bool
	loads     int
}

// NewSnapshotCache creates an empty cache over store.
func NewSnapshotCache(store storage.ContractStore) *SnapshotCache {
	return &SnapshotCache{store: store}
}

// Contracts returns the cached snapshot, loading it if invalid.
// The returned slice must not be modified.
func (c *SnapshotCache) Contracts(ctx context.Context) ([]*domain.SwapContract, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid {
		return c.contracts, nil
	}
	contracts, err := c.store.ListContracts(ctx)
	if err != nil {
		return nil, err
	}
	c.contracts = contracts
	c.valid = true
	c.loads++
	return contracts, nil
}

// Invalidate drops the snapshot.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts = nil
	c.valid = false
	observability.RecordInvalidation()
}

// Loads reports how many times the snapshot was read from the store.
func (c *SnapshotCache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}
