package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// AnalysisStore implements storage.AnalysisStore using PostgreSQL.
type AnalysisStore struct {
	pool *Pool
}

// NewAnalysisStore creates a new AnalysisStore.
func NewAnalysisStore(pool *Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AnalysisStore = (*AnalysisStore)(nil)

// SaveAnalysis inserts or replaces the analysis of a swap.
func (s *AnalysisStore) SaveAnalysis(ctx context.Context, a *domain.SwapAnalysis) error {
	if a == nil {
		return storage.ErrInvalidInput
	}
	risks := a.KeyRisks
	if risks == nil {
		risks = []string{}
	}
	keyRisks, err := json.Marshal(risks)
	if err != nil {
		return fmt.Errorf("encode key risks: %w", err)
	}

	query := `
		INSERT INTO swap_analysis (swap_id, analysis_text, risk_score, key_risks)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (swap_id) DO UPDATE SET
			analysis_text = EXCLUDED.analysis_text,
			risk_score = EXCLUDED.risk_score,
			key_risks = EXCLUDED.key_risks,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`
	err = s.pool.QueryRow(ctx, query, a.SwapID, a.AnalysisText, a.RiskScore, string(keyRisks)).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return translateError("save analysis", err)
	}
	return nil
}

// GetAnalysis retrieves the analysis of a swap. Returns ErrNotFound if not exists.
func (s *AnalysisStore) GetAnalysis(ctx context.Context, swapID int64) (*domain.SwapAnalysis, error) {
	query := `
		SELECT id, swap_id, analysis_text, risk_score, key_risks, created_at, updated_at
		FROM swap_analysis
		WHERE swap_id = $1
	`
	var a domain.SwapAnalysis
	var keyRisks []byte
	err := s.pool.QueryRow(ctx, query, swapID).
		Scan(&a.ID, &a.SwapID, &a.AnalysisText, &a.RiskScore, &keyRisks, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	if err := json.Unmarshal(keyRisks, &a.KeyRisks); err != nil {
		return nil, fmt.Errorf("decode key risks: %w", err)
	}
	return &a, nil
}
