package memory

import (
	"context"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// SaveAnalysis inserts or replaces the analysis of a swap.
func (s *Store) SaveAnalysis(_ context.Context, a *domain.SwapAnalysis) error {
	if a == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[a.SwapID]; !ok {
		return storage.ErrForeignKey
	}

	row := copyAnalysis(a)
	now := s.now()
	if existing, ok := s.analyses[a.SwapID]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else {
		s.seq.analysis++
		row.ID = s.seq.analysis
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	s.analyses[a.SwapID] = row

	a.ID = row.ID
	return nil
}

// GetAnalysis retrieves the analysis of a swap.
func (s *Store) GetAnalysis(_ context.Context, swapID int64) (*domain.SwapAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analyses[swapID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyAnalysis(a), nil
}

func copyAnalysis(a *domain.SwapAnalysis) *domain.SwapAnalysis {
	out := *a
	out.KeyRisks = append([]string(nil), a.KeyRisks...)
	return &out
}
