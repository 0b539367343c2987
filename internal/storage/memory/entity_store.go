package memory

import (
	"context"
	"sort"
	"strings"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// GetOrCreateCounterparty returns the counterparty matching name
// case-insensitively, creating it if absent.
func (s *Store) GetOrCreateCounterparty(_ context.Context, name string) (*domain.Counterparty, error) {
	key := domain.NormalizeName(name)
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.counterpartyBy[key]; ok {
		cp := *s.counterparties[id]
		return &cp, nil
	}

	s.seq.counterparty++
	cp := &domain.Counterparty{ID: s.seq.counterparty, Name: strings.TrimSpace(name)}
	s.counterparties[cp.ID] = cp
	s.counterpartyBy[key] = cp.ID

	out := *cp
	return &out, nil
}

// GetOrCreateSecurity returns the security matching identifier
// case-insensitively, creating it if absent.
func (s *Store) GetOrCreateSecurity(_ context.Context, identifier string) (*domain.ReferenceSecurity, error) {
	key := domain.NormalizeName(identifier)
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.securityBy[key]; ok {
		sec := *s.securities[id]
		return &sec, nil
	}

	s.seq.security++
	sec := &domain.ReferenceSecurity{ID: s.seq.security, Identifier: strings.TrimSpace(identifier)}
	s.securities[sec.ID] = sec
	s.securityBy[key] = sec.ID

	out := *sec
	return &out, nil
}

// ListCounterparties returns all counterparties ordered by name.
func (s *Store) ListCounterparties(_ context.Context) ([]*domain.Counterparty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Counterparty, 0, len(s.counterparties))
	for _, cp := range s.counterparties {
		c := *cp
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ListSecurities returns all securities ordered by identifier.
func (s *Store) ListSecurities(_ context.Context) ([]*domain.ReferenceSecurity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ReferenceSecurity, 0, len(s.securities))
	for _, sec := range s.securities {
		c := *sec
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Identifier < result[j].Identifier })
	return result, nil
}
