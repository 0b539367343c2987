package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// ContractStore implements storage.ContractStore using PostgreSQL.
type ContractStore struct {
	pool *Pool
}

// NewContractStore creates a new ContractStore.
func NewContractStore(pool *Pool) *ContractStore {
	return &ContractStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ContractStore = (*ContractStore)(nil)

const contractSelect = `
	SELECT s.id, s.contract_id, s.counterparty_id, c.name, s.reference_entity,
		s.notional_amount, s.currency, s.effective_date, s.maturity_date,
		s.swap_type, s.payment_frequency, s.fixed_rate, s.floating_rate_index,
		s.floating_rate_spread, s.collateral_terms, s.additional_terms,
		s.created_at, s.updated_at
	FROM swaps s
	JOIN counterparties c ON c.id = s.counterparty_id
`

// UpsertContract inserts the contract or replaces every field of the row
// with the same contract_id.
func (s *ContractStore) UpsertContract(ctx context.Context, c *domain.SwapContract) (*domain.SwapContract, error) {
	if c == nil || strings.TrimSpace(c.ContractID) == "" {
		return nil, storage.ErrInvalidInput
	}
	if err := upsertContract(ctx, s.pool, c); err != nil {
		return nil, err
	}
	return getContract(ctx, s.pool, c.ContractID)
}

func upsertContract(ctx context.Context, q querier, c *domain.SwapContract) error {
	collateral, err := c.CollateralTerms.Encode()
	if err != nil {
		return fmt.Errorf("encode collateral terms: %w", err)
	}
	additional, err := c.AdditionalTerms.Encode()
	if err != nil {
		return fmt.Errorf("encode additional terms: %w", err)
	}

	query := `
		INSERT INTO swaps (
			contract_id, counterparty_id, reference_entity, notional_amount, currency,
			effective_date, maturity_date, swap_type, payment_frequency, fixed_rate,
			floating_rate_index, floating_rate_spread, collateral_terms, additional_terms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14::jsonb)
		ON CONFLICT (contract_id) DO UPDATE SET
			counterparty_id = EXCLUDED.counterparty_id,
			reference_entity = EXCLUDED.reference_entity,
			notional_amount = EXCLUDED.notional_amount,
			currency = EXCLUDED.currency,
			effective_date = EXCLUDED.effective_date,
			maturity_date = EXCLUDED.maturity_date,
			swap_type = EXCLUDED.swap_type,
			payment_frequency = EXCLUDED.payment_frequency,
			fixed_rate = EXCLUDED.fixed_rate,
			floating_rate_index = EXCLUDED.floating_rate_index,
			floating_rate_spread = EXCLUDED.floating_rate_spread,
			collateral_terms = EXCLUDED.collateral_terms,
			additional_terms = EXCLUDED.additional_terms,
			updated_at = now()
		RETURNING id
	`

	err = q.QueryRow(ctx, query,
		c.ContractID,
		c.CounterpartyID,
		c.ReferenceEntity,
		c.NotionalAmount,
		c.Currency,
		c.EffectiveDate,
		c.MaturityDate,
		string(c.SwapType),
		string(c.PaymentFrequency),
		c.FixedRate,
		c.FloatingRateIndex,
		c.FloatingRateSpread,
		string(collateral),
		string(additional),
	).Scan(&c.ID)
	if err != nil {
		return translateError("upsert contract", err)
	}
	return nil
}

// SaveContractGraph upserts the contract and replaces its obligations,
// triggers and instruments in one transaction.
func (s *ContractStore) SaveContractGraph(ctx context.Context, g *storage.ContractGraph) (*domain.SwapContract, error) {
	if g == nil || g.Contract == nil || strings.TrimSpace(g.Contract.ContractID) == "" {
		return nil, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertContract(ctx, tx, g.Contract); err != nil {
		return nil, err
	}
	swapID := g.Contract.ID

	// Triggers go with their obligations through ON DELETE CASCADE.
	if _, err := tx.Exec(ctx, `DELETE FROM swap_obligations WHERE swap_id = $1`, swapID); err != nil {
		return nil, fmt.Errorf("clear obligations: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM underlying_instruments WHERE swap_id = $1`, swapID); err != nil {
		return nil, fmt.Errorf("clear instruments: %w", err)
	}

	for _, og := range g.Obligations {
		if og.Obligation == nil {
			return nil, storage.ErrInvalidInput
		}
		og.Obligation.SwapID = swapID
		if err := insertObligation(ctx, tx, og.Obligation); err != nil {
			return nil, err
		}
		for _, t := range og.Triggers {
			if t == nil {
				continue
			}
			t.ObligationID = og.Obligation.ID
			if err := insertTrigger(ctx, tx, t); err != nil {
				return nil, err
			}
		}
	}
	for _, in := range g.Instruments {
		if in == nil {
			return nil, storage.ErrInvalidInput
		}
		in.SwapID = swapID
		if err := insertInstrument(ctx, tx, in); err != nil {
			return nil, err
		}
	}

	stored, err := getContract(ctx, tx, g.Contract.ContractID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return stored, nil
}

// GetContract retrieves a contract by contract_id. Returns ErrNotFound if not exists.
func (s *ContractStore) GetContract(ctx context.Context, contractID string) (*domain.SwapContract, error) {
	return getContract(ctx, s.pool, contractID)
}

func getContract(ctx context.Context, q querier, contractID string) (*domain.SwapContract, error) {
	row := q.QueryRow(ctx, contractSelect+` WHERE s.contract_id = $1`, contractID)
	c, err := scanContract(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

// FindByReferenceEntity returns contracts whose reference entity contains
// substring case-insensitively.
func (s *ContractStore) FindByReferenceEntity(ctx context.Context, substring string) ([]*domain.SwapContract, error) {
	query := contractSelect + `
		WHERE strpos(lower(s.reference_entity), lower($1)) > 0
		ORDER BY s.contract_id ASC
	`
	return s.queryContracts(ctx, "find contracts by reference entity", query, strings.TrimSpace(substring))
}

// FindByCounterparty returns contracts held with the named counterparty.
func (s *ContractStore) FindByCounterparty(ctx context.Context, name string) ([]*domain.SwapContract, error) {
	query := contractSelect + `
		WHERE lower(c.name) = lower($1)
		ORDER BY s.contract_id ASC
	`
	return s.queryContracts(ctx, "find contracts by counterparty", query, strings.TrimSpace(name))
}

// ListContracts returns all contracts ordered by contract_id.
func (s *ContractStore) ListContracts(ctx context.Context) ([]*domain.SwapContract, error) {
	return s.queryContracts(ctx, "list contracts", contractSelect+` ORDER BY s.contract_id ASC`)
}

// DeleteContract removes a contract. Obligations, triggers, instruments and
// analysis follow through ON DELETE CASCADE.
func (s *ContractStore) DeleteContract(ctx context.Context, contractID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM swaps WHERE contract_id = $1`, contractID)
	if err != nil {
		return false, fmt.Errorf("delete contract: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ContractStore) queryContracts(ctx context.Context, op, query string, args ...any) ([]*domain.SwapContract, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	contracts := make([]*domain.SwapContract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract row: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contract rows: %w", err)
	}
	return contracts, nil
}

// scanContract scans a single row of contractSelect.
func scanContract(row pgx.Row) (*domain.SwapContract, error) {
	var c domain.SwapContract
	var swapType, frequency string
	var collateral, additional []byte

	err := row.Scan(
		&c.ID,
		&c.ContractID,
		&c.CounterpartyID,
		&c.Counterparty,
		&c.ReferenceEntity,
		&c.NotionalAmount,
		&c.Currency,
		&c.EffectiveDate,
		&c.MaturityDate,
		&swapType,
		&frequency,
		&c.FixedRate,
		&c.FloatingRateIndex,
		&c.FloatingRateSpread,
		&collateral,
		&additional,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.SwapType = domain.SwapType(swapType)
	c.PaymentFrequency = domain.PaymentFrequency(frequency)
	if c.CollateralTerms, err = domain.DecodeTerms(collateral); err != nil {
		return nil, err
	}
	if c.AdditionalTerms, err = domain.DecodeTerms(additional); err != nil {
		return nil, err
	}
	return &c, nil
}
