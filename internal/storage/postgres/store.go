package postgres

import "swap-risk-lab/internal/storage"

// Store bundles the PostgreSQL stores over one pool.
type Store struct {
	*EntityStore
	*ContractStore
	*ObligationStore
	*AnalysisStore
}

// NewStore creates a Store backed by pool.
func NewStore(pool *Pool) *Store {
	return &Store{
		EntityStore:     NewEntityStore(pool),
		ContractStore:   NewContractStore(pool),
		ObligationStore: NewObligationStore(pool),
		AnalysisStore:   NewAnalysisStore(pool),
	}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)
