package storage

import (
	"context"

	"swap-risk-lab/internal/domain"
)

// EntityStore provides access to the counterparties and reference_securities
// lookup tables. Names are unique case-insensitively.
type EntityStore interface {
	// GetOrCreateCounterparty returns the counterparty whose name matches
	// case-insensitively, inserting it first if absent. Atomic per name.
	GetOrCreateCounterparty(ctx context.Context, name string) (*domain.Counterparty, error)

	// GetOrCreateSecurity returns the reference security whose identifier
	// matches case-insensitively, inserting it first if absent. Atomic per identifier.
	GetOrCreateSecurity(ctx context.Context, identifier string) (*domain.ReferenceSecurity, error)

	// ListCounterparties returns all counterparties ordered by name.
	ListCounterparties(ctx context.Context) ([]*domain.Counterparty, error)

	// ListSecurities returns all reference securities ordered by identifier.
	ListSecurities(ctx context.Context) ([]*domain.ReferenceSecurity, error)
}

// ObligationGraph is an obligation together with its triggers.
type ObligationGraph struct {
	Obligation *domain.SwapObligation
	Triggers   []*domain.ObligationTrigger
}

// ContractGraph is a contract with everything derived from it. The contract's
// CounterpartyID and every instrument's SecurityID must already be resolved.
type ContractGraph struct {
	Contract    *domain.SwapContract
	Obligations []ObligationGraph
	Instruments []*domain.UnderlyingInstrument
}

// ContractStore provides access to swaps storage.
type ContractStore interface {
	// UpsertContract inserts the contract if contract_id is unseen, otherwise
	// replaces every field and refreshes updated_at. Returns the stored row.
	UpsertContract(ctx context.Context, c *domain.SwapContract) (*domain.SwapContract, error)

	// SaveContractGraph upserts the contract and replaces its obligations,
	// triggers and instruments in a single transaction.
	SaveContractGraph(ctx context.Context, g *ContractGraph) (*domain.SwapContract, error)

	// GetContract retrieves a contract by contract_id. Returns ErrNotFound if not exists.
	GetContract(ctx context.Context, contractID string) (*domain.SwapContract, error)

	// FindByReferenceEntity returns contracts whose reference entity contains
	// substring, case-insensitively, ordered by contract_id.
	FindByReferenceEntity(ctx context.Context, substring string) ([]*domain.SwapContract, error)

	// FindByCounterparty returns contracts whose counterparty name equals
	// name case-insensitively, ordered by contract_id.
	FindByCounterparty(ctx context.Context, name string) ([]*domain.SwapContract, error)

	// ListContracts returns all contracts ordered by contract_id.
	ListContracts(ctx context.Context) ([]*domain.SwapContract, error)

	// DeleteContract removes a contract and cascades to its obligations,
	// triggers, instruments and analysis. Reports whether a row was removed.
	DeleteContract(ctx context.Context, contractID string) (bool, error)
}

// ObligationStore provides access to obligations, triggers, instruments and
// the flattened read view.
type ObligationStore interface {
	// AddUnderlyingInstrument inserts an instrument. Returns ErrForeignKey if
	// the swap or security does not exist.
	AddUnderlyingInstrument(ctx context.Context, in *domain.UnderlyingInstrument) error

	// AddObligation inserts an obligation. Returns ErrForeignKey if the swap does not exist.
	AddObligation(ctx context.Context, o *domain.SwapObligation) error

	// AddObligationTrigger inserts a trigger. Returns ErrForeignKey if the obligation does not exist.
	AddObligationTrigger(ctx context.Context, t *domain.ObligationTrigger) error

	// SetTriggerActive flips the soft-delete marker of a trigger.
	SetTriggerActive(ctx context.Context, triggerID int64, active bool) error

	// ListObligations returns a contract's obligations ordered by id.
	ListObligations(ctx context.Context, contractID string) ([]*domain.SwapObligation, error)

	// ListTriggers returns the triggers (active or not) of an obligation ordered by id.
	ListTriggers(ctx context.Context, obligationID int64) ([]*domain.ObligationTrigger, error)

	// ListInstruments returns a contract's underlying instruments ordered by id.
	ListInstruments(ctx context.Context, contractID string) ([]*domain.UnderlyingInstrument, error)

	// ObligationsView returns the flattened join of contracts, obligations,
	// instruments and active triggers. An empty contractID returns all rows.
	ObligationsView(ctx context.Context, contractID string) ([]*domain.ObligationViewRow, error)

	// ObligationsByCounterparty returns obligations of contracts held with
	// the named counterparty (case-insensitive).
	ObligationsByCounterparty(ctx context.Context, name string) ([]*domain.SwapObligation, error)

	// ObligationsByInstrument returns obligations of contracts that have an
	// underlying instrument with the given identifier (case-insensitive).
	ObligationsByInstrument(ctx context.Context, identifier string) ([]*domain.SwapObligation, error)
}

// AnalysisStore provides access to swap_analysis storage.
type AnalysisStore interface {
	// SaveAnalysis inserts or replaces the analysis of a swap.
	SaveAnalysis(ctx context.Context, a *domain.SwapAnalysis) error

	// GetAnalysis retrieves the analysis of a swap. Returns ErrNotFound if not exists.
	GetAnalysis(ctx context.Context, swapID int64) (*domain.SwapAnalysis, error)
}

// RiskHistoryStore provides append-only access to scored risk snapshots.
type RiskHistoryStore interface {
	// Insert appends a snapshot.
	Insert(ctx context.Context, s *domain.RiskSnapshot) error

	// GetBySubject returns snapshots of a subject ordered by scored_at ASC.
	GetBySubject(ctx context.Context, kind, subject string) ([]*domain.RiskSnapshot, error)
}

// Store bundles the relational stores. Every backend implements all of them
// over one database so the read view and cascades see the same data.
type Store interface {
	EntityStore
	ContractStore
	ObligationStore
	AnalysisStore
}
