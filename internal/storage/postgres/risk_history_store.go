package postgres

import (
	"context"
	"fmt"
	"strings"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// RiskHistoryStore implements storage.RiskHistoryStore using PostgreSQL.
type RiskHistoryStore struct {
	pool *Pool
}

// NewRiskHistoryStore creates a new RiskHistoryStore.
func NewRiskHistoryStore(pool *Pool) *RiskHistoryStore {
	return &RiskHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RiskHistoryStore = (*RiskHistoryStore)(nil)

// Insert appends a snapshot.
func (s *RiskHistoryStore) Insert(ctx context.Context, snap *domain.RiskSnapshot) error {
	if snap == nil || strings.TrimSpace(snap.Subject) == "" || snap.SubjectKind == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO risk_history (
			subject_kind, subject, score, level,
			notional_score, maturity_score, counterparty_score, currency_score, type_score,
			total_notional, num_swaps, scored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.pool.Exec(ctx, query,
		snap.SubjectKind, snap.Subject, snap.Score, snap.Level,
		snap.NotionalScore, snap.MaturityScore, snap.CounterpartyScore, snap.CurrencyScore, snap.TypeScore,
		snap.TotalNotional, snap.NumSwaps, snap.ScoredAt.UTC(),
	)
	if err != nil {
		return translateError("insert risk snapshot", err)
	}
	return nil
}

// GetBySubject returns snapshots of a subject ordered by scored_at ASC.
// Subjects match case-insensitively.
func (s *RiskHistoryStore) GetBySubject(ctx context.Context, kind, subject string) ([]*domain.RiskSnapshot, error) {
	query := `
		SELECT subject_kind, subject, score, level,
			notional_score, maturity_score, counterparty_score, currency_score, type_score,
			total_notional, num_swaps, scored_at
		FROM risk_history
		WHERE subject_kind = $1 AND lower(subject) = $2
		ORDER BY scored_at ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, query, kind, domain.NormalizeName(subject))
	if err != nil {
		return nil, fmt.Errorf("query risk history: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.RiskSnapshot, 0)
	for rows.Next() {
		var snap domain.RiskSnapshot
		err := rows.Scan(
			&snap.SubjectKind, &snap.Subject, &snap.Score, &snap.Level,
			&snap.NotionalScore, &snap.MaturityScore, &snap.CounterpartyScore, &snap.CurrencyScore, &snap.TypeScore,
			&snap.TotalNotional, &snap.NumSwaps, &snap.ScoredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan risk snapshot: %w", err)
		}
		snap.ScoredAt = snap.ScoredAt.UTC()
		result = append(result, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk history: %w", err)
	}
	return result, nil
}
