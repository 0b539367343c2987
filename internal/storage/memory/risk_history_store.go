package memory

import (
	"context"
	"sort"
	"sync"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// RiskHistoryStore is an in-memory implementation of storage.RiskHistoryStore.
type RiskHistoryStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.RiskSnapshot // keyed by kind|subject
}

// NewRiskHistoryStore creates a new in-memory risk history store.
func NewRiskHistoryStore() *RiskHistoryStore {
	return &RiskHistoryStore{
		data: make(map[string][]*domain.RiskSnapshot),
	}
}

var _ storage.RiskHistoryStore = (*RiskHistoryStore)(nil)

func historyKey(kind, subject string) string {
	return kind + "|" + domain.NormalizeName(subject)
}

// Insert appends a snapshot.
func (s *RiskHistoryStore) Insert(_ context.Context, snap *domain.RiskSnapshot) error {
	if snap == nil || snap.Subject == "" || snap.SubjectKind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *snap
	key := historyKey(snap.SubjectKind, snap.Subject)
	s.data[key] = append(s.data[key], &copy)
	return nil
}

// GetBySubject returns snapshots of a subject ordered by ScoredAt ASC.
func (s *RiskHistoryStore) GetBySubject(_ context.Context, kind, subject string) ([]*domain.RiskSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[historyKey(kind, subject)]
	result := make([]*domain.RiskSnapshot, 0, len(stored))
	for _, snap := range stored {
		copy := *snap
		result = append(result, &copy)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].ScoredAt.Before(result[j].ScoredAt) })
	return result, nil
}
