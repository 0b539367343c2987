package sqlstore

import (
	"context"
	"strings"

	"gorm.io/gorm/clause"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// GetOrCreateCounterparty returns the counterparty matching name
// case-insensitively, inserting it first if absent.
func (s *Store) GetOrCreateCounterparty(ctx context.Context, name string) (*domain.Counterparty, error) {
	key := domain.NormalizeName(name)
	if key == "" {
		return nil, storage.ErrInvalidInput
	}
	db := s.db.WithContext(ctx)

	rec := counterpartyRecord{Name: strings.TrimSpace(name), NameKey: key}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name_key"}},
		DoNothing: true,
	}).Create(&rec).Error
	if err != nil {
		return nil, translateError("insert counterparty", err)
	}

	var stored counterpartyRecord
	if err := db.Where("name_key = ?", key).First(&stored).Error; err != nil {
		return nil, translateError("select counterparty", err)
	}
	return stored.toDomain(), nil
}

// GetOrCreateSecurity returns the reference security matching identifier
// case-insensitively, inserting it first if absent.
func (s *Store) GetOrCreateSecurity(ctx context.Context, identifier string) (*domain.ReferenceSecurity, error) {
	key := domain.NormalizeName(identifier)
	if key == "" {
		return nil, storage.ErrInvalidInput
	}
	db := s.db.WithContext(ctx)

	rec := securityRecord{Identifier: strings.TrimSpace(identifier), IdentifierKey: key}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier_key"}},
		DoNothing: true,
	}).Create(&rec).Error
	if err != nil {
		return nil, translateError("insert security", err)
	}

	var stored securityRecord
	if err := db.Where("identifier_key = ?", key).First(&stored).Error; err != nil {
		return nil, translateError("select security", err)
	}
	return stored.toDomain(), nil
}

// ListCounterparties returns all counterparties ordered by name.
func (s *Store) ListCounterparties(ctx context.Context) ([]*domain.Counterparty, error) {
	var records []counterpartyRecord
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&records).Error; err != nil {
		return nil, translateError("list counterparties", err)
	}
	result := make([]*domain.Counterparty, 0, len(records))
	for i := range records {
		result = append(result, records[i].toDomain())
	}
	return result, nil
}

// ListSecurities returns all reference securities ordered by identifier.
func (s *Store) ListSecurities(ctx context.Context) ([]*domain.ReferenceSecurity, error) {
	var records []securityRecord
	if err := s.db.WithContext(ctx).Order("identifier ASC").Find(&records).Error; err != nil {
		return nil, translateError("list securities", err)
	}
	result := make([]*domain.ReferenceSecurity, 0, len(records))
	for i := range records {
		result = append(result, records[i].toDomain())
	}
	return result, nil
}
