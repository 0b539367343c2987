package sqlstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// SaveAnalysis inserts or replaces the analysis of a swap.
func (s *Store) SaveAnalysis(ctx context.Context, a *domain.SwapAnalysis) error {
	if a == nil {
		return storage.ErrInvalidInput
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &swapRecord{}, a.SwapID); err != nil {
			return err
		}

		rec := analysisRecord{
			SwapID:       a.SwapID,
			AnalysisText: a.AnalysisText,
			RiskScore:    a.RiskScore,
			KeyRisks:     JSONStringSlice(a.KeyRisks),
		}
		var existing analysisRecord
		err := tx.Where("swap_id = ?", a.SwapID).First(&existing).Error
		switch {
		case err == nil:
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
			err = tx.Save(&rec).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = tx.Create(&rec).Error
		}
		if err != nil {
			return err
		}

		a.ID = rec.ID
		a.CreatedAt = rec.CreatedAt
		a.UpdatedAt = rec.UpdatedAt
		return nil
	})
	return translateError("save analysis", err)
}

// GetAnalysis retrieves the analysis of a swap. Returns ErrNotFound if not exists.
func (s *Store) GetAnalysis(ctx context.Context, swapID int64) (*domain.SwapAnalysis, error) {
	var rec analysisRecord
	if err := s.db.WithContext(ctx).Where("swap_id = ?", swapID).First(&rec).Error; err != nil {
		return nil, translateError("get analysis", err)
	}
	return rec.toDomain(), nil
}
