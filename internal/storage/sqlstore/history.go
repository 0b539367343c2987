package sqlstore

import (
	"context"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// Insert appends a risk snapshot.
func (s *Store) Insert(ctx context.Context, snap *domain.RiskSnapshot) error {
	if snap == nil || snap.Subject == "" || snap.SubjectKind == "" {
		return storage.ErrInvalidInput
	}
	rec := riskSnapshotRecord{
		SubjectKind:       snap.SubjectKind,
		SubjectKey:        domain.NormalizeName(snap.Subject),
		Subject:           snap.Subject,
		Score:             snap.Score,
		Level:             snap.Level,
		NotionalScore:     snap.NotionalScore,
		MaturityScore:     snap.MaturityScore,
		CounterpartyScore: snap.CounterpartyScore,
		CurrencyScore:     snap.CurrencyScore,
		TypeScore:         snap.TypeScore,
		TotalNotional:     snap.TotalNotional,
		NumSwaps:          snap.NumSwaps,
		ScoredAt:          snap.ScoredAt.UTC(),
	}
	return translateError("insert risk snapshot", s.db.WithContext(ctx).Create(&rec).Error)
}

// GetBySubject returns snapshots of a subject ordered by scored_at ASC.
func (s *Store) GetBySubject(ctx context.Context, kind, subject string) ([]*domain.RiskSnapshot, error) {
	var records []riskSnapshotRecord
	err := s.db.WithContext(ctx).
		Where("subject_kind = ? AND subject_key = ?", kind, domain.NormalizeName(subject)).
		Order("scored_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, translateError("get risk history", err)
	}

	result := make([]*domain.RiskSnapshot, 0, len(records))
	for _, r := range records {
		result = append(result, &domain.RiskSnapshot{
			SubjectKind:       r.SubjectKind,
			Subject:           r.Subject,
			Score:             r.Score,
			Level:             r.Level,
			NotionalScore:     r.NotionalScore,
			MaturityScore:     r.MaturityScore,
			CounterpartyScore: r.CounterpartyScore,
			CurrencyScore:     r.CurrencyScore,
			TypeScore:         r.TypeScore,
			TotalNotional:     r.TotalNotional,
			NumSwaps:          r.NumSwaps,
			ScoredAt:          r.ScoredAt.UTC(),
		})
	}
	return result, nil
}
