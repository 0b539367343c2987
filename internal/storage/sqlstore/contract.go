package sqlstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// UpsertContract inserts the contract or replaces every field of the row
// with the same contract_id.
func (s *Store) UpsertContract(ctx context.Context, c *domain.SwapContract) (*domain.SwapContract, error) {
	if c == nil || strings.TrimSpace(c.ContractID) == "" {
		return nil, storage.ErrInvalidInput
	}

	var stored *domain.SwapContract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := upsertContract(tx, c)
		if err != nil {
			return err
		}
		stored, err = loadContract(tx, rec)
		return err
	})
	if err != nil {
		return nil, translateError("upsert contract", err)
	}
	return stored, nil
}

func upsertContract(tx *gorm.DB, c *domain.SwapContract) (*swapRecord, error) {
	if c.NotionalAmount < 0 || c.MaturityDate.Before(c.EffectiveDate) {
		return nil, storage.ErrInvalidInput
	}
	if err := requireRow(tx, &counterpartyRecord{}, c.CounterpartyID); err != nil {
		return nil, err
	}

	rec := swapFromDomain(c)
	var existing swapRecord
	err := tx.Where("contract_id = ?", c.ContractID).First(&existing).Error
	switch {
	case err == nil:
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		if err := tx.Save(rec).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(rec).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	c.ID = rec.ID
	return rec, nil
}

// SaveContractGraph upserts the contract and replaces its obligations,
// triggers and instruments in one transaction.
func (s *Store) SaveContractGraph(ctx context.Context, g *storage.ContractGraph) (*domain.SwapContract, error) {
	if g == nil || g.Contract == nil || strings.TrimSpace(g.Contract.ContractID) == "" {
		return nil, storage.ErrInvalidInput
	}

	var stored *domain.SwapContract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := upsertContract(tx, g.Contract)
		if err != nil {
			return err
		}
		if err := clearDerived(tx, rec.ID); err != nil {
			return err
		}

		for _, og := range g.Obligations {
			if og.Obligation == nil {
				return storage.ErrInvalidInput
			}
			og.Obligation.SwapID = rec.ID
			if err := insertObligation(tx, og.Obligation); err != nil {
				return err
			}
			for _, t := range og.Triggers {
				if t == nil {
					continue
				}
				t.ObligationID = og.Obligation.ID
				if err := insertTrigger(tx, t); err != nil {
					return err
				}
			}
		}
		for _, in := range g.Instruments {
			if in == nil {
				return storage.ErrInvalidInput
			}
			in.SwapID = rec.ID
			if err := insertInstrument(tx, in); err != nil {
				return err
			}
		}

		stored, err = loadContract(tx, rec)
		return err
	})
	if err != nil {
		return nil, translateError("save contract graph", err)
	}
	return stored, nil
}

// GetContract retrieves a contract by contract_id. Returns ErrNotFound if not exists.
func (s *Store) GetContract(ctx context.Context, contractID string) (*domain.SwapContract, error) {
	db := s.db.WithContext(ctx)

	var rec swapRecord
	if err := db.Where("contract_id = ?", contractID).First(&rec).Error; err != nil {
		return nil, translateError("get contract", err)
	}
	c, err := loadContract(db, &rec)
	if err != nil {
		return nil, translateError("get contract", err)
	}
	return c, nil
}

// FindByReferenceEntity returns contracts whose reference entity contains
// substring case-insensitively.
func (s *Store) FindByReferenceEntity(ctx context.Context, substring string) ([]*domain.SwapContract, error) {
	query := s.db.WithContext(ctx).
		Where("LOWER(reference_entity) LIKE ? ESCAPE '!'", likePattern(strings.TrimSpace(substring)))
	return findContracts(query, "find contracts by reference entity")
}

// FindByCounterparty returns contracts held with the named counterparty.
func (s *Store) FindByCounterparty(ctx context.Context, name string) ([]*domain.SwapContract, error) {
	query := s.db.WithContext(ctx).
		Where("counterparty_id IN (?)", s.db.Model(&counterpartyRecord{}).Select("id").Where("name_key = ?", domain.NormalizeName(name)))
	return findContracts(query, "find contracts by counterparty")
}

// ListContracts returns all contracts ordered by contract_id.
func (s *Store) ListContracts(ctx context.Context) ([]*domain.SwapContract, error) {
	return findContracts(s.db.WithContext(ctx), "list contracts")
}

// DeleteContract removes a contract with its obligations, triggers,
// instruments and analysis.
func (s *Store) DeleteContract(ctx context.Context, contractID string) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec swapRecord
		err := tx.Where("contract_id = ?", contractID).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := clearDerived(tx, rec.ID); err != nil {
			return err
		}
		if err := tx.Where("swap_id = ?", rec.ID).Delete(&analysisRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&swapRecord{}, rec.ID).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, translateError("delete contract", err)
	}
	return deleted, nil
}

func findContracts(query *gorm.DB, op string) ([]*domain.SwapContract, error) {
	var records []swapRecord
	if err := query.Order("contract_id ASC").Find(&records).Error; err != nil {
		return nil, translateError(op, err)
	}
	if len(records) == 0 {
		return []*domain.SwapContract{}, nil
	}

	names, err := counterpartyNames(query.Session(&gorm.Session{NewDB: true}), records)
	if err != nil {
		return nil, translateError(op, err)
	}

	result := make([]*domain.SwapContract, 0, len(records))
	for i := range records {
		result = append(result, records[i].toDomain(names[records[i].CounterpartyID]))
	}
	return result, nil
}

func loadContract(db *gorm.DB, rec *swapRecord) (*domain.SwapContract, error) {
	var stored swapRecord
	if err := db.First(&stored, rec.ID).Error; err != nil {
		return nil, err
	}
	names, err := counterpartyNames(db, []swapRecord{stored})
	if err != nil {
		return nil, err
	}
	return stored.toDomain(names[stored.CounterpartyID]), nil
}

func counterpartyNames(db *gorm.DB, records []swapRecord) (map[int64]string, error) {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.CounterpartyID)
	}
	var cps []counterpartyRecord
	if err := db.Where("id IN ?", ids).Find(&cps).Error; err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(cps))
	for _, cp := range cps {
		names[cp.ID] = cp.Name
	}
	return names, nil
}

// clearDerived deletes every obligation, trigger and instrument of a swap.
func clearDerived(tx *gorm.DB, swapID int64) error {
	obligationIDs := tx.Model(&obligationRecord{}).Select("id").Where("swap_id = ?", swapID)
	if err := tx.Where("obligation_id IN (?)", obligationIDs).Delete(&triggerRecord{}).Error; err != nil {
		return err
	}
	if err := tx.Where("swap_id = ?", swapID).Delete(&obligationRecord{}).Error; err != nil {
		return err
	}
	return tx.Where("swap_id = ?", swapID).Delete(&instrumentRecord{}).Error
}

// requireRow returns ErrForeignKey unless model has a row with id.
func requireRow(tx *gorm.DB, model any, id int64) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrForeignKey
	}
	return nil
}
