package sqlstore

import (
	"context"

	"gorm.io/gorm"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/storage"
)

// AddUnderlyingInstrument inserts an instrument and assigns its ID.
func (s *Store) AddUnderlyingInstrument(ctx context.Context, in *domain.UnderlyingInstrument) error {
	if in == nil {
		return storage.ErrInvalidInput
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertInstrument(tx, in)
	})
	return translateError("add instrument", err)
}

// AddObligation inserts an obligation and assigns its ID.
func (s *Store) AddObligation(ctx context.Context, o *domain.SwapObligation) error {
	if o == nil {
		return storage.ErrInvalidInput
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertObligation(tx, o)
	})
	return translateError("add obligation", err)
}

// AddObligationTrigger inserts a trigger and assigns its ID.
func (s *Store) AddObligationTrigger(ctx context.Context, t *domain.ObligationTrigger) error {
	if t == nil {
		return storage.ErrInvalidInput
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertTrigger(tx, t)
	})
	return translateError("add trigger", err)
}

func insertObligation(tx *gorm.DB, o *domain.SwapObligation) error {
	if err := requireRow(tx, &swapRecord{}, o.SwapID); err != nil {
		return err
	}
	rec := obligationFromDomain(o)
	if err := tx.Create(rec).Error; err != nil {
		return err
	}
	o.ID = rec.ID
	return nil
}

func insertTrigger(tx *gorm.DB, t *domain.ObligationTrigger) error {
	if err := requireRow(tx, &obligationRecord{}, t.ObligationID); err != nil {
		return err
	}
	rec := triggerFromDomain(t)
	if err := tx.Create(rec).Error; err != nil {
		return err
	}
	t.ID = rec.ID
	return nil
}

func insertInstrument(tx *gorm.DB, in *domain.UnderlyingInstrument) error {
	if err := requireRow(tx, &swapRecord{}, in.SwapID); err != nil {
		return err
	}
	if err := requireRow(tx, &securityRecord{}, in.SecurityID); err != nil {
		return err
	}
	rec := instrumentFromDomain(in)
	if err := tx.Create(rec).Error; err != nil {
		return err
	}
	in.ID = rec.ID
	return nil
}

// SetTriggerActive flips the soft-delete marker of a trigger.
func (s *Store) SetTriggerActive(ctx context.Context, triggerID int64, active bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec triggerRecord
		if err := tx.First(&rec, triggerID).Error; err != nil {
			return err
		}
		return tx.Model(&rec).Update("is_active", active).Error
	})
	return translateError("set trigger active", err)
}

// ListObligations returns a contract's obligations ordered by id.
func (s *Store) ListObligations(ctx context.Context, contractID string) ([]*domain.SwapObligation, error) {
	db := s.db.WithContext(ctx)

	var swap swapRecord
	if err := db.Where("contract_id = ?", contractID).First(&swap).Error; err != nil {
		return nil, translateError("list obligations", err)
	}
	return findObligations(db.Where("swap_id = ?", swap.ID), "list obligations")
}

// ObligationsByCounterparty returns obligations of contracts held with the
// named counterparty.
func (s *Store) ObligationsByCounterparty(ctx context.Context, name string) ([]*domain.SwapObligation, error) {
	db := s.db.WithContext(ctx)
	cps := db.Model(&counterpartyRecord{}).Select("id").Where("name_key = ?", domain.NormalizeName(name))
	swaps := db.Model(&swapRecord{}).Select("id").Where("counterparty_id IN (?)", cps)
	return findObligations(db.Where("swap_id IN (?)", swaps), "obligations by counterparty")
}

// ObligationsByInstrument returns obligations of contracts referencing the
// given underlying identifier.
func (s *Store) ObligationsByInstrument(ctx context.Context, identifier string) ([]*domain.SwapObligation, error) {
	db := s.db.WithContext(ctx)
	secs := db.Model(&securityRecord{}).Select("id").Where("identifier_key = ?", domain.NormalizeName(identifier))
	swaps := db.Model(&instrumentRecord{}).Select("swap_id").Where("security_id IN (?)", secs)
	return findObligations(db.Where("swap_id IN (?)", swaps), "obligations by instrument")
}

func findObligations(query *gorm.DB, op string) ([]*domain.SwapObligation, error) {
	var records []obligationRecord
	if err := query.Order("id ASC").Find(&records).Error; err != nil {
		return nil, translateError(op, err)
	}
	result := make([]*domain.SwapObligation, 0, len(records))
	for i := range records {
		result = append(result, records[i].toDomain())
	}
	return result, nil
}

// ListTriggers returns the triggers of an obligation ordered by id.
func (s *Store) ListTriggers(ctx context.Context, obligationID int64) ([]*domain.ObligationTrigger, error) {
	var records []triggerRecord
	err := s.db.WithContext(ctx).Where("obligation_id = ?", obligationID).Order("id ASC").Find(&records).Error
	if err != nil {
		return nil, translateError("list triggers", err)
	}
	result := make([]*domain.ObligationTrigger, 0, len(records))
	for i := range records {
		result = append(result, records[i].toDomain())
	}
	return result, nil
}

// ListInstruments returns a contract's underlying instruments ordered by id.
func (s *Store) ListInstruments(ctx context.Context, contractID string) ([]*domain.UnderlyingInstrument, error) {
	db := s.db.WithContext(ctx)

	var swap swapRecord
	if err := db.Where("contract_id = ?", contractID).First(&swap).Error; err != nil {
		return nil, translateError("list instruments", err)
	}
	instruments, err := loadInstruments(db, []int64{swap.ID})
	if err != nil {
		return nil, translateError("list instruments", err)
	}
	return instruments[swap.ID], nil
}

func loadInstruments(db *gorm.DB, swapIDs []int64) (map[int64][]*domain.UnderlyingInstrument, error) {
	var records []instrumentRecord
	if err := db.Where("swap_id IN ?", swapIDs).Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	secIDs := make([]int64, 0, len(records))
	for _, r := range records {
		secIDs = append(secIDs, r.SecurityID)
	}
	var secs []securityRecord
	if len(secIDs) > 0 {
		if err := db.Where("id IN ?", secIDs).Find(&secs).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[int64]*securityRecord, len(secs))
	for i := range secs {
		byID[secs[i].ID] = &secs[i]
	}

	out := make(map[int64][]*domain.UnderlyingInstrument, len(swapIDs))
	for _, id := range swapIDs {
		out[id] = []*domain.UnderlyingInstrument{}
	}
	for i := range records {
		out[records[i].SwapID] = append(out[records[i].SwapID], records[i].toDomain(byID[records[i].SecurityID]))
	}
	return out, nil
}

// ObligationsView assembles the flattened read view from the base tables.
func (s *Store) ObligationsView(ctx context.Context, contractID string) ([]*domain.ObligationViewRow, error) {
	db := s.db.WithContext(ctx)

	query := db
	if contractID != "" {
		query = db.Where("contract_id = ?", contractID)
	}
	contracts, err := findContracts(query, "obligations view")
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return []*domain.ObligationViewRow{}, nil
	}

	swapIDs := make([]int64, 0, len(contracts))
	for _, c := range contracts {
		swapIDs = append(swapIDs, c.ID)
	}

	var obligationRecords []obligationRecord
	if err := db.Where("swap_id IN ?", swapIDs).Order("id ASC").Find(&obligationRecords).Error; err != nil {
		return nil, translateError("obligations view", err)
	}
	obligations := make(map[int64][]*domain.SwapObligation)
	obligationIDs := make([]int64, 0, len(obligationRecords))
	for i := range obligationRecords {
		o := obligationRecords[i].toDomain()
		obligations[o.SwapID] = append(obligations[o.SwapID], o)
		obligationIDs = append(obligationIDs, o.ID)
	}

	triggers := make(map[int64][]*domain.ObligationTrigger)
	if len(obligationIDs) > 0 {
		var triggerRecords []triggerRecord
		if err := db.Where("obligation_id IN ?", obligationIDs).Order("id ASC").Find(&triggerRecords).Error; err != nil {
			return nil, translateError("obligations view", err)
		}
		for i := range triggerRecords {
			t := triggerRecords[i].toDomain()
			triggers[t.ObligationID] = append(triggers[t.ObligationID], t)
		}
	}

	instruments, err := loadInstruments(db, swapIDs)
	if err != nil {
		return nil, translateError("obligations view", err)
	}

	rows := make([]*domain.ObligationViewRow, 0)
	for _, c := range contracts {
		rows = append(rows, storage.JoinObligationView(c, obligations[c.ID], triggers, instruments[c.ID])...)
	}
	return rows, nil
}
