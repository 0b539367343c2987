// Package memory provides in-memory implementations of the storage
// interfaces. Tables are arenas keyed by surrogate id with secondary index
// maps; rows reference each other by id only.
package memory

import (
	"sync"
	"time"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	seq struct {
		counterparty, security, contract, obligation, trigger, instrument, analysis int64
	}

	counterparties map[int64]*domain.Counterparty
	counterpartyBy map[string]int64 // normalized name -> id

	securities map[int64]*domain.ReferenceSecurity
	securityBy map[string]int64 // normalized identifier -> id

	contracts  map[int64]*domain.SwapContract
	contractBy map[string]int64 // contract_id -> id

	obligations   map[int64]*domain.SwapObligation
	obligationsOf map[int64][]int64 // swap id -> obligation ids

	triggers   map[int64]*domain.ObligationTrigger
	triggersOf map[int64][]int64 // obligation id -> trigger ids

	instruments   map[int64]*domain.UnderlyingInstrument
	instrumentsOf map[int64][]int64 // swap id -> instrument ids

	analyses map[int64]*domain.SwapAnalysis // keyed by swap id
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		now:            func() time.Time { return time.Now().UTC() },
		counterparties: make(map[int64]*domain.Counterparty),
		counterpartyBy: make(map[string]int64),
		securities:     make(map[int64]*domain.ReferenceSecurity),
		securityBy:     make(map[string]int64),
		contracts:      make(map[int64]*domain.SwapContract),
		contractBy:     make(map[string]int64),
		obligations:    make(map[int64]*domain.SwapObligation),
		obligationsOf:  make(map[int64][]int64),
		triggers:       make(map[int64]*domain.ObligationTrigger),
		triggersOf:     make(map[int64][]int64),
		instruments:    make(map[int64]*domain.UnderlyingInstrument),
		instrumentsOf:  make(map[int64][]int64),
		analyses:       make(map[int64]*domain.SwapAnalysis),
	}
}

// WithClock overrides the timestamp source. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

var _ storage.Store = (*Store)(nil)

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
