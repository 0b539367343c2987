package memory

import (
	"context"
	"sort"
	"strings"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// UpsertContract inserts or replaces a contract keyed by ContractID.
func (s *Store) UpsertContract(_ context.Context, c *domain.SwapContract) (*domain.SwapContract, error) {
	if c == nil || strings.TrimSpace(c.ContractID) == "" {
		return nil, storage.ErrInvalidInput
	}

	if c.NotionalAmount < 0 || c.MaturityDate.Before(c.EffectiveDate) {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.counterparties[c.CounterpartyID]; !ok {
		return nil, storage.ErrForeignKey
	}
	return s.upsertLocked(c), nil
}

// upsertLocked stores c and returns the joined copy. Caller holds s.mu.
func (s *Store) upsertLocked(c *domain.SwapContract) *domain.SwapContract {
	row := c.Clone()
	now := s.now()

	if id, ok := s.contractBy[c.ContractID]; ok {
		row.ID = id
		row.CreatedAt = s.contracts[id].CreatedAt
	} else {
		s.seq.contract++
		row.ID = s.seq.contract
		row.CreatedAt = now
		s.contractBy[row.ContractID] = row.ID
	}
	row.UpdatedAt = now
	row.Counterparty = ""
	s.contracts[row.ID] = row

	return s.joinContract(row)
}

// SaveContractGraph upserts the contract and replaces its derived rows.
// Nothing is written when any reference is dangling.
func (s *Store) SaveContractGraph(_ context.Context, g *storage.ContractGraph) (*domain.SwapContract, error) {
	if g == nil || g.Contract == nil || strings.TrimSpace(g.Contract.ContractID) == "" {
		return nil, storage.ErrInvalidInput
	}
	if g.Contract.NotionalAmount < 0 || g.Contract.MaturityDate.Before(g.Contract.EffectiveDate) {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.counterparties[g.Contract.CounterpartyID]; !ok {
		return nil, storage.ErrForeignKey
	}
	for _, in := range g.Instruments {
		if in == nil {
			return nil, storage.ErrInvalidInput
		}
		if _, ok := s.securities[in.SecurityID]; !ok {
			return nil, storage.ErrForeignKey
		}
	}
	for _, og := range g.Obligations {
		if og.Obligation == nil {
			return nil, storage.ErrInvalidInput
		}
	}

	stored := s.upsertLocked(g.Contract)
	s.clearDerivedLocked(stored.ID)

	for _, og := range g.Obligations {
		o := s.insertObligationLocked(stored.ID, og.Obligation)
		og.Obligation.ID = o.ID
		og.Obligation.SwapID = o.SwapID
		for _, t := range og.Triggers {
			if t == nil {
				continue
			}
			row := s.insertTriggerLocked(o.ID, t)
			t.ID = row.ID
			t.ObligationID = row.ObligationID
		}
	}
	for _, in := range g.Instruments {
		row := s.insertInstrumentLocked(stored.ID, in)
		in.ID = row.ID
		in.SwapID = row.SwapID
	}

	g.Contract.ID = stored.ID
	return stored, nil
}

// GetContract retrieves a contract by ContractID.
func (s *Store) GetContract(_ context.Context, contractID string) (*domain.SwapContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.contractBy[contractID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.joinContract(s.contracts[id]), nil
}

// FindByReferenceEntity returns contracts whose reference entity contains
// substring case-insensitively.
func (s *Store) FindByReferenceEntity(_ context.Context, substring string) ([]*domain.SwapContract, error) {
	needle := strings.ToLower(strings.TrimSpace(substring))
	return s.filterContracts(func(c *domain.SwapContract) bool {
		return strings.Contains(strings.ToLower(c.ReferenceEntity), needle)
	}), nil
}

// FindByCounterparty returns contracts held with the named counterparty.
func (s *Store) FindByCounterparty(_ context.Context, name string) ([]*domain.SwapContract, error) {
	key := domain.NormalizeName(name)
	return s.filterContracts(func(c *domain.SwapContract) bool {
		id, ok := s.counterpartyBy[key]
		return ok && c.CounterpartyID == id
	}), nil
}

// ListContracts returns all contracts ordered by ContractID.
func (s *Store) ListContracts(_ context.Context) ([]*domain.SwapContract, error) {
	return s.filterContracts(func(*domain.SwapContract) bool { return true }), nil
}

// DeleteContract removes a contract with its obligations, triggers,
// instruments and analysis.
func (s *Store) DeleteContract(_ context.Context, contractID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.contractBy[contractID]
	if !ok {
		return false, nil
	}

	s.clearDerivedLocked(id)
	delete(s.analyses, id)
	delete(s.contracts, id)
	delete(s.contractBy, contractID)
	return true, nil
}

func (s *Store) filterContracts(keep func(*domain.SwapContract) bool) []*domain.SwapContract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SwapContract, 0)
	for _, c := range s.contracts {
		if keep(c) {
			result = append(result, s.joinContract(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ContractID < result[j].ContractID })
	return result
}

// joinContract copies a stored row and fills in the counterparty name.
func (s *Store) joinContract(c *domain.SwapContract) *domain.SwapContract {
	out := c.Clone()
	if cp, ok := s.counterparties[c.CounterpartyID]; ok {
		out.Counterparty = cp.Name
	}
	return out
}

// clearDerivedLocked drops every obligation, trigger and instrument of a swap.
func (s *Store) clearDerivedLocked(swapID int64) {
	for _, oid := range s.obligationsOf[swapID] {
		for _, tid := range s.triggersOf[oid] {
			delete(s.triggers, tid)
		}
		delete(s.triggersOf, oid)
		delete(s.obligations, oid)
	}
	delete(s.obligationsOf, swapID)

	for _, iid := range s.instrumentsOf[swapID] {
		delete(s.instruments, iid)
	}
	delete(s.instrumentsOf, swapID)
}
