package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// RiskHistoryStore implements storage.RiskHistoryStore using ClickHouse.
type RiskHistoryStore struct {
	conn *Conn
}

// NewRiskHistoryStore creates a new RiskHistoryStore.
func NewRiskHistoryStore(conn *Conn) *RiskHistoryStore {
	return &RiskHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RiskHistoryStore = (*RiskHistoryStore)(nil)

// Insert appends a snapshot. Rows are never updated.
func (s *RiskHistoryStore) Insert(ctx context.Context, snap *domain.RiskSnapshot) error {
	if snap == nil || strings.TrimSpace(snap.Subject) == "" || snap.SubjectKind == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO risk_history (
			subject_kind, subject, score, level,
			notional_score, maturity_score, counterparty_score, currency_score, type_score,
			total_notional, num_swaps, scored_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		snap.SubjectKind, snap.Subject, snap.Score, snap.Level,
		snap.NotionalScore, snap.MaturityScore, snap.CounterpartyScore, snap.CurrencyScore, snap.TypeScore,
		snap.TotalNotional, uint32(snap.NumSwaps), snap.ScoredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
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
		WHERE subject_kind = ? AND lower(subject) = ?
		ORDER BY scored_at ASC
	`

	rows, err := s.conn.Query(ctx, query, kind, domain.NormalizeName(subject))
	if err != nil {
		return nil, fmt.Errorf("query risk history: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.RiskSnapshot, 0)
	for rows.Next() {
		var (
			snap     domain.RiskSnapshot
			numSwaps uint32
			scoredAt time.Time
		)
		err := rows.Scan(
			&snap.SubjectKind, &snap.Subject, &snap.Score, &snap.Level,
			&snap.NotionalScore, &snap.MaturityScore, &snap.CounterpartyScore, &snap.CurrencyScore, &snap.TypeScore,
			&snap.TotalNotional, &numSwaps, &scoredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan risk snapshot: %w", err)
		}
		snap.NumSwaps = int(numSwaps)
		snap.ScoredAt = scoredAt.UTC()
		result = append(result, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk history: %w", err)
	}
	return result, nil
}
