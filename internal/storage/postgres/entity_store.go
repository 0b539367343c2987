package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// EntityStore implements storage.EntityStore using PostgreSQL.
type EntityStore struct {
	pool *Pool
}

// NewEntityStore creates a new EntityStore.
func NewEntityStore(pool *Pool) *EntityStore {
	return &EntityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EntityStore = (*EntityStore)(nil)

// GetOrCreateCounterparty returns the counterparty matching name
// case-insensitively, inserting it first if absent.
func (s *EntityStore) GetOrCreateCounterparty(ctx context.Context, name string) (*domain.Counterparty, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, storage.ErrInvalidInput
	}

	// ON CONFLICT DO NOTHING resolves against idx_counterparties_name, so
	// concurrent callers race safely and the SELECT sees the winner.
	insert := `INSERT INTO counterparties (name) VALUES ($1) ON CONFLICT DO NOTHING`
	if _, err := s.pool.Exec(ctx, insert, name); err != nil {
		return nil, fmt.Errorf("insert counterparty: %w", err)
	}

	query := `
		SELECT id, name, lei, entity_type
		FROM counterparties
		WHERE lower(name) = lower($1)
	`
	var cp domain.Counterparty
	if err := s.pool.QueryRow(ctx, query, name).Scan(&cp.ID, &cp.Name, &cp.LEI, &cp.EntityType); err != nil {
		return nil, fmt.Errorf("select counterparty: %w", err)
	}
	return &cp, nil
}

// GetOrCreateSecurity returns the reference security matching identifier
// case-insensitively, inserting it first if absent.
func (s *EntityStore) GetOrCreateSecurity(ctx context.Context, identifier string) (*domain.ReferenceSecurity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, storage.ErrInvalidInput
	}

	insert := `INSERT INTO reference_securities (identifier) VALUES ($1) ON CONFLICT DO NOTHING`
	if _, err := s.pool.Exec(ctx, insert, identifier); err != nil {
		return nil, fmt.Errorf("insert security: %w", err)
	}

	query := `
		SELECT id, identifier, security_type, description
		FROM reference_securities
		WHERE lower(identifier) = lower($1)
	`
	var sec domain.ReferenceSecurity
	err := s.pool.QueryRow(ctx, query, identifier).Scan(&sec.ID, &sec.Identifier, &sec.SecurityType, &sec.Description)
	if err != nil {
		return nil, fmt.Errorf("select security: %w", err)
	}
	return &sec, nil
}

// ListCounterparties returns all counterparties ordered by name.
func (s *EntityStore) ListCounterparties(ctx context.Context) ([]*domain.Counterparty, error) {
	query := `SELECT id, name, lei, entity_type FROM counterparties ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list counterparties: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Counterparty, error) {
		var cp domain.Counterparty
		err := row.Scan(&cp.ID, &cp.Name, &cp.LEI, &cp.EntityType)
		return &cp, err
	})
}

// ListSecurities returns all reference securities ordered by identifier.
func (s *EntityStore) ListSecurities(ctx context.Context) ([]*domain.ReferenceSecurity, error) {
	query := `SELECT id, identifier, security_type, description FROM reference_securities ORDER BY identifier ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list securities: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.ReferenceSecurity, error) {
		var sec domain.ReferenceSecurity
		err := row.Scan(&sec.ID, &sec.Identifier, &sec.SecurityType, &sec.Description)
		return &sec, err
	})
}
