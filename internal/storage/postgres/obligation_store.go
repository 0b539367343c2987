package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// ObligationStore implements storage.ObligationStore using PostgreSQL.
type ObligationStore struct {
	pool *Pool
}

// NewObligationStore creates a new ObligationStore.
func NewObligationStore(pool *Pool) *ObligationStore {
	return &ObligationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObligationStore = (*ObligationStore)(nil)

// AddUnderlyingInstrument inserts an instrument and assigns its ID.
func (s *ObligationStore) AddUnderlyingInstrument(ctx context.Context, in *domain.UnderlyingInstrument) error {
	if in == nil {
		return storage.ErrInvalidInput
	}
	return insertInstrument(ctx, s.pool, in)
}

// AddObligation inserts an obligation and assigns its ID.
func (s *ObligationStore) AddObligation(ctx context.Context, o *domain.SwapObligation) error {
	if o == nil {
		return storage.ErrInvalidInput
	}
	return insertObligation(ctx, s.pool, o)
}

// AddObligationTrigger inserts a trigger and assigns its ID.
func (s *ObligationStore) AddObligationTrigger(ctx context.Context, t *domain.ObligationTrigger) error {
	if t == nil {
		return storage.ErrInvalidInput
	}
	return insertTrigger(ctx, s.pool, t)
}

func insertObligation(ctx context.Context, q querier, o *domain.SwapObligation) error {
	query := `
		INSERT INTO swap_obligations (
			swap_id, obligation_type, amount, currency, due_date, status, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := q.QueryRow(ctx, query,
		o.SwapID, o.Type, o.Amount, o.Currency, o.DueDate, o.Status, o.Description,
	).Scan(&o.ID)
	if err != nil {
		return translateError("insert obligation", err)
	}
	return nil
}

func insertTrigger(ctx context.Context, q querier, t *domain.ObligationTrigger) error {
	query := `
		INSERT INTO obligation_triggers (
			obligation_id, trigger_type, trigger_condition, description, is_active
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := q.QueryRow(ctx, query,
		t.ObligationID, t.Type, t.Condition, t.Description, t.IsActive,
	).Scan(&t.ID)
	if err != nil {
		return translateError("insert trigger", err)
	}
	return nil
}

func insertInstrument(ctx context.Context, q querier, in *domain.UnderlyingInstrument) error {
	query := `
		INSERT INTO underlying_instruments (
			swap_id, security_id, instrument_type, description, quantity, notional_amount, currency
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := q.QueryRow(ctx, query,
		in.SwapID, in.SecurityID, in.InstrumentType, in.Description, in.Quantity, in.Notional, in.Currency,
	).Scan(&in.ID)
	if err != nil {
		return translateError("insert instrument", err)
	}
	return nil
}

// SetTriggerActive flips the soft-delete marker of a trigger.
func (s *ObligationStore) SetTriggerActive(ctx context.Context, triggerID int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE obligation_triggers SET is_active = $2 WHERE id = $1`, triggerID, active)
	if err != nil {
		return fmt.Errorf("set trigger active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const obligationSelect = `
	SELECT o.id, o.swap_id, o.obligation_type, o.amount, o.currency, o.due_date, o.status, o.description
	FROM swap_obligations o
`

// ListObligations returns a contract's obligations ordered by id.
func (s *ObligationStore) ListObligations(ctx context.Context, contractID string) ([]*domain.SwapObligation, error) {
	if err := s.requireContract(ctx, contractID); err != nil {
		return nil, err
	}
	query := obligationSelect + `
		JOIN swaps s ON s.id = o.swap_id
		WHERE s.contract_id = $1
		ORDER BY o.id ASC
	`
	return s.queryObligations(ctx, "list obligations", query, contractID)
}

// ObligationsByCounterparty returns obligations of contracts held with the
// named counterparty.
func (s *ObligationStore) ObligationsByCounterparty(ctx context.Context, name string) ([]*domain.SwapObligation, error) {
	query := obligationSelect + `
		JOIN swaps s ON s.id = o.swap_id
		JOIN counterparties c ON c.id = s.counterparty_id
		WHERE lower(c.name) = lower(trim($1))
		ORDER BY o.id ASC
	`
	return s.queryObligations(ctx, "obligations by counterparty", query, name)
}

// ObligationsByInstrument returns obligations of contracts referencing the
// given underlying identifier.
func (s *ObligationStore) ObligationsByInstrument(ctx context.Context, identifier string) ([]*domain.SwapObligation, error) {
	query := obligationSelect + `
		WHERE o.swap_id IN (
			SELECT ui.swap_id
			FROM underlying_instruments ui
			JOIN reference_securities rs ON rs.id = ui.security_id
			WHERE lower(rs.identifier) = lower(trim($1))
		)
		ORDER BY o.id ASC
	`
	return s.queryObligations(ctx, "obligations by instrument", query, identifier)
}

func (s *ObligationStore) queryObligations(ctx context.Context, op, query string, args ...any) ([]*domain.SwapObligation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.SwapObligation, error) {
		var o domain.SwapObligation
		err := row.Scan(&o.ID, &o.SwapID, &o.Type, &o.Amount, &o.Currency, &o.DueDate, &o.Status, &o.Description)
		return &o, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListTriggers returns the triggers of an obligation ordered by id.
func (s *ObligationStore) ListTriggers(ctx context.Context, obligationID int64) ([]*domain.ObligationTrigger, error) {
	query := `
		SELECT id, obligation_id, trigger_type, trigger_condition, description, is_active
		FROM obligation_triggers
		WHERE obligation_id = $1
		ORDER BY id ASC
	`
	rows, err := s.pool.Query(ctx, query, obligationID)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.ObligationTrigger, error) {
		var t domain.ObligationTrigger
		err := row.Scan(&t.ID, &t.ObligationID, &t.Type, &t.Condition, &t.Description, &t.IsActive)
		return &t, err
	})
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return result, nil
}

// ListInstruments returns a contract's underlying instruments ordered by id.
func (s *ObligationStore) ListInstruments(ctx context.Context, contractID string) ([]*domain.UnderlyingInstrument, error) {
	if err := s.requireContract(ctx, contractID); err != nil {
		return nil, err
	}
	query := `
		SELECT ui.id, ui.swap_id, ui.security_id, rs.identifier, ui.instrument_type,
			COALESCE(NULLIF(ui.description, ''), rs.description, ''),
			ui.quantity, ui.notional_amount, ui.currency
		FROM underlying_instruments ui
		JOIN reference_securities rs ON rs.id = ui.security_id
		JOIN swaps s ON s.id = ui.swap_id
		WHERE s.contract_id = $1
		ORDER BY ui.id ASC
	`
	rows, err := s.pool.Query(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.UnderlyingInstrument, error) {
		var in domain.UnderlyingInstrument
		err := row.Scan(&in.ID, &in.SwapID, &in.SecurityID, &in.Identifier, &in.InstrumentType,
			&in.Description, &in.Quantity, &in.Notional, &in.Currency)
		return &in, err
	})
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	return result, nil
}

func (s *ObligationStore) requireContract(ctx context.Context, contractID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM swaps WHERE contract_id = $1)`, contractID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check contract: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}

// ObligationsView reads vw_swap_obligations, optionally for one contract.
func (s *ObligationStore) ObligationsView(ctx context.Context, contractID string) ([]*domain.ObligationViewRow, error) {
	query := `
		SELECT swap_id, contract_id, counterparty, reference_entity, notional_amount,
			currency, effective_date, maturity_date, swap_type,
			obligation_id, obligation_type, obligation_amount, obligation_currency,
			due_date, obligation_status, obligation_description,
			instrument_type, instrument_identifier, instrument_description,
			quantity, instrument_notional,
			trigger_type, trigger_condition, trigger_description
		FROM vw_swap_obligations
		WHERE $1::text = '' OR contract_id = $1::text
		ORDER BY contract_id ASC, obligation_id ASC NULLS FIRST,
			instrument_identifier ASC NULLS FIRST, trigger_type ASC NULLS FIRST
	`
	rows, err := s.pool.Query(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("query obligations view: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.ObligationViewRow, 0)
	for rows.Next() {
		var r domain.ObligationViewRow
		var swapType string
		err := rows.Scan(
			&r.SwapID, &r.ContractID, &r.Counterparty, &r.ReferenceEntity, &r.NotionalAmount,
			&r.Currency, &r.EffectiveDate, &r.MaturityDate, &swapType,
			&r.ObligationID, &r.ObligationType, &r.ObligationAmount, &r.ObligationCurrency,
			&r.DueDate, &r.ObligationStatus, &r.ObligationDescription,
			&r.InstrumentType, &r.InstrumentIdentifier, &r.InstrumentDescription,
			&r.Quantity, &r.InstrumentNotional,
			&r.TriggerType, &r.TriggerCondition, &r.TriggerDescription,
		)
		if err != nil {
			return nil, fmt.Errorf("scan view row: %w", err)
		}
		r.SwapType = domain.SwapType(swapType)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate view rows: %w", err)
	}
	return result, nil
}
