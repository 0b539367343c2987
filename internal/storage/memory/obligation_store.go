package memory

import (
	"context"
	"sort"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// AddUnderlyingInstrument inserts an instrument and assigns its ID.
func (s *Store) AddUnderlyingInstrument(_ context.Context, in *domain.UnderlyingInstrument) error {
	if in == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[in.SwapID]; !ok {
		return storage.ErrForeignKey
	}
	if _, ok := s.securities[in.SecurityID]; !ok {
		return storage.ErrForeignKey
	}

	row := s.insertInstrumentLocked(in.SwapID, in)
	in.ID = row.ID
	return nil
}

// AddObligation inserts an obligation and assigns its ID.
func (s *Store) AddObligation(_ context.Context, o *domain.SwapObligation) error {
	if o == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[o.SwapID]; !ok {
		return storage.ErrForeignKey
	}

	row := s.insertObligationLocked(o.SwapID, o)
	o.ID = row.ID
	return nil
}

// AddObligationTrigger inserts a trigger and assigns its ID.
func (s *Store) AddObligationTrigger(_ context.Context, t *domain.ObligationTrigger) error {
	if t == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.obligations[t.ObligationID]; !ok {
		return storage.ErrForeignKey
	}

	row := s.insertTriggerLocked(t.ObligationID, t)
	t.ID = row.ID
	return nil
}

// SetTriggerActive flips the soft-delete marker of a trigger.
func (s *Store) SetTriggerActive(_ context.Context, triggerID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.triggers[triggerID]
	if !ok {
		return storage.ErrNotFound
	}
	t.IsActive = active
	return nil
}

// ListObligations returns a contract's obligations ordered by ID.
func (s *Store) ListObligations(_ context.Context, contractID string) ([]*domain.SwapObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.contractBy[contractID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.obligationsOfLocked(id), nil
}

// ListTriggers returns the triggers of an obligation ordered by ID.
func (s *Store) ListTriggers(_ context.Context, obligationID int64) ([]*domain.ObligationTrigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ObligationTrigger, 0, len(s.triggersOf[obligationID]))
	for _, tid := range s.triggersOf[obligationID] {
		t := *s.triggers[tid]
		result = append(result, &t)
	}
	return result, nil
}

// ListInstruments returns a contract's instruments ordered by ID.
func (s *Store) ListInstruments(_ context.Context, contractID string) ([]*domain.UnderlyingInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.contractBy[contractID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	result := make([]*domain.UnderlyingInstrument, 0, len(s.instrumentsOf[id]))
	for _, iid := range s.instrumentsOf[id] {
		result = append(result, s.joinInstrument(s.instruments[iid]))
	}
	return result, nil
}

// ObligationsView builds the flattened read view. Rows are ordered by
// contract, obligation, instrument and trigger.
func (s *Store) ObligationsView(_ context.Context, contractID string) ([]*domain.ObligationViewRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var swapIDs []int64
	if contractID != "" {
		id, ok := s.contractBy[contractID]
		if !ok {
			return []*domain.ObligationViewRow{}, nil
		}
		swapIDs = []int64{id}
	} else {
		for _, id := range s.contractBy {
			swapIDs = append(swapIDs, id)
		}
		sort.Slice(swapIDs, func(i, j int) bool {
			return s.contracts[swapIDs[i]].ContractID < s.contracts[swapIDs[j]].ContractID
		})
	}

	rows := make([]*domain.ObligationViewRow, 0)
	for _, sid := range swapIDs {
		rows = append(rows, s.viewRowsLocked(sid)...)
	}
	return rows, nil
}

func (s *Store) viewRowsLocked(swapID int64) []*domain.ObligationViewRow {
	triggers := make(map[int64][]*domain.ObligationTrigger)
	for _, oid := range s.obligationsOf[swapID] {
		for _, tid := range s.triggersOf[oid] {
			triggers[oid] = append(triggers[oid], s.triggers[tid])
		}
	}

	instruments := make([]*domain.UnderlyingInstrument, 0, len(s.instrumentsOf[swapID]))
	for _, iid := range s.instrumentsOf[swapID] {
		instruments = append(instruments, s.joinInstrument(s.instruments[iid]))
	}

	return storage.JoinObligationView(
		s.joinContract(s.contracts[swapID]),
		s.obligationsOfLocked(swapID),
		triggers,
		instruments,
	)
}

// ObligationsByCounterparty returns obligations of contracts held with the
// named counterparty.
func (s *Store) ObligationsByCounterparty(_ context.Context, name string) ([]*domain.SwapObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cpID, ok := s.counterpartyBy[domain.NormalizeName(name)]
	if !ok {
		return []*domain.SwapObligation{}, nil
	}

	result := make([]*domain.SwapObligation, 0)
	for id, c := range s.contracts {
		if c.CounterpartyID == cpID {
			result = append(result, s.obligationsOfLocked(id)...)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ObligationsByInstrument returns obligations of contracts referencing the
// given underlying identifier.
func (s *Store) ObligationsByInstrument(_ context.Context, identifier string) ([]*domain.SwapObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secID, ok := s.securityBy[domain.NormalizeName(identifier)]
	if !ok {
		return []*domain.SwapObligation{}, nil
	}

	result := make([]*domain.SwapObligation, 0)
	for swapID, iids := range s.instrumentsOf {
		for _, iid := range iids {
			if s.instruments[iid].SecurityID == secID {
				result = append(result, s.obligationsOfLocked(swapID)...)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) obligationsOfLocked(swapID int64) []*domain.SwapObligation {
	result := make([]*domain.SwapObligation, 0, len(s.obligationsOf[swapID]))
	for _, oid := range s.obligationsOf[swapID] {
		result = append(result, copyObligation(s.obligations[oid]))
	}
	return result
}

func (s *Store) insertObligationLocked(swapID int64, o *domain.SwapObligation) *domain.SwapObligation {
	s.seq.obligation++
	row := copyObligation(o)
	row.ID = s.seq.obligation
	row.SwapID = swapID
	s.obligations[row.ID] = row
	s.obligationsOf[swapID] = append(s.obligationsOf[swapID], row.ID)
	return row
}

func (s *Store) insertTriggerLocked(obligationID int64, t *domain.ObligationTrigger) *domain.ObligationTrigger {
	s.seq.trigger++
	row := *t
	row.ID = s.seq.trigger
	row.ObligationID = obligationID
	s.triggers[row.ID] = &row
	s.triggersOf[obligationID] = append(s.triggersOf[obligationID], row.ID)
	return &row
}

func (s *Store) insertInstrumentLocked(swapID int64, in *domain.UnderlyingInstrument) *domain.UnderlyingInstrument {
	s.seq.instrument++
	row := copyInstrument(in)
	row.ID = s.seq.instrument
	row.SwapID = swapID
	row.Identifier = ""
	s.instruments[row.ID] = row
	s.instrumentsOf[swapID] = append(s.instrumentsOf[swapID], row.ID)
	return row
}

// joinInstrument copies a stored instrument and fills in the security
// identifier, falling back to the security description.
func (s *Store) joinInstrument(in *domain.UnderlyingInstrument) *domain.UnderlyingInstrument {
	out := copyInstrument(in)
	if sec, ok := s.securities[in.SecurityID]; ok {
		out.Identifier = sec.Identifier
		if out.Description == "" && sec.Description != nil {
			out.Description = *sec.Description
		}
	}
	return out
}

func copyObligation(o *domain.SwapObligation) *domain.SwapObligation {
	out := *o
	if o.DueDate != nil {
		d := *o.DueDate
		out.DueDate = &d
	}
	return &out
}

func copyInstrument(in *domain.UnderlyingInstrument) *domain.UnderlyingInstrument {
	out := *in
	if in.Quantity != nil {
		q := *in.Quantity
		out.Quantity = &q
	}
	if in.Notional != nil {
		n := *in.Notional
		out.Notional = &n
	}
	return &out
}
