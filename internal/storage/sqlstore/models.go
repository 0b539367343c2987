package sqlstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"swap-risk-lab/internal/domain"
)

// JSONStringSlice is a []string stored as a JSON text column.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONStringSlice: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// counterpartyRecord backs the counterparties table. NameKey carries the
// case-insensitive unique constraint portably across dialects.
type counterpartyRecord struct {
	ID         int64     `gorm:"primaryKey;column:id;autoIncrement"`
	Name       string    `gorm:"column:name;type:varchar(255);not null"`
	NameKey    string    `gorm:"column:name_key;type:varchar(255);uniqueIndex:idx_counterparties_name_key;not null"`
	LEI        *string   `gorm:"column:lei;type:varchar(64)"`
	EntityType *string   `gorm:"column:entity_type;type:varchar(64)"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (counterpartyRecord) TableName() string { return "counterparties" }

func (r *counterpartyRecord) toDomain() *domain.Counterparty {
	return &domain.Counterparty{ID: r.ID, Name: r.Name, LEI: r.LEI, EntityType: r.EntityType}
}

type securityRecord struct {
	ID            int64     `gorm:"primaryKey;column:id;autoIncrement"`
	Identifier    string    `gorm:"column:identifier;type:varchar(255);not null"`
	IdentifierKey string    `gorm:"column:identifier_key;type:varchar(255);uniqueIndex:idx_reference_securities_identifier_key;not null"`
	SecurityType  *string   `gorm:"column:security_type;type:varchar(64)"`
	Description   *string   `gorm:"column:description;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (securityRecord) TableName() string { return "reference_securities" }

func (r *securityRecord) toDomain() *domain.ReferenceSecurity {
	return &domain.ReferenceSecurity{ID: r.ID, Identifier: r.Identifier, SecurityType: r.SecurityType, Description: r.Description}
}

type swapRecord struct {
	ID                 int64        `gorm:"primaryKey;column:id;autoIncrement"`
	ContractID         string       `gorm:"column:contract_id;type:varchar(255);uniqueIndex:idx_swaps_contract_id;not null"`
	CounterpartyID     int64        `gorm:"column:counterparty_id;index;not null"`
	ReferenceEntity    string       `gorm:"column:reference_entity;type:varchar(255);not null"`
	NotionalAmount     float64      `gorm:"column:notional_amount;not null"`
	Currency           string       `gorm:"column:currency;type:varchar(8);not null"`
	EffectiveDate      time.Time    `gorm:"column:effective_date;not null"`
	MaturityDate       time.Time    `gorm:"column:maturity_date;not null"`
	SwapType           string       `gorm:"column:swap_type;type:varchar(32);not null"`
	PaymentFrequency   string       `gorm:"column:payment_frequency;type:varchar(32);not null"`
	FixedRate          *float64     `gorm:"column:fixed_rate"`
	FloatingRateIndex  *string      `gorm:"column:floating_rate_index;type:varchar(64)"`
	FloatingRateSpread *float64     `gorm:"column:floating_rate_spread"`
	CollateralTerms    domain.Terms `gorm:"column:collateral_terms;type:text"`
	AdditionalTerms    domain.Terms `gorm:"column:additional_terms;type:text"`
	CreatedAt          time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (swapRecord) TableName() string { return "swaps" }

func swapFromDomain(c *domain.SwapContract) *swapRecord {
	c = c.Clone()
	return &swapRecord{
		ContractID:         c.ContractID,
		CounterpartyID:     c.CounterpartyID,
		ReferenceEntity:    c.ReferenceEntity,
		NotionalAmount:     c.NotionalAmount,
		Currency:           c.Currency,
		EffectiveDate:      c.EffectiveDate.UTC(),
		MaturityDate:       c.MaturityDate.UTC(),
		SwapType:           string(c.SwapType),
		PaymentFrequency:   string(c.PaymentFrequency),
		FixedRate:          c.FixedRate,
		FloatingRateIndex:  c.FloatingRateIndex,
		FloatingRateSpread: c.FloatingRateSpread,
		CollateralTerms:    c.CollateralTerms,
		AdditionalTerms:    c.AdditionalTerms,
	}
}

func (r *swapRecord) toDomain(counterparty string) *domain.SwapContract {
	return &domain.SwapContract{
		ID:                 r.ID,
		ContractID:         r.ContractID,
		CounterpartyID:     r.CounterpartyID,
		Counterparty:       counterparty,
		ReferenceEntity:    r.ReferenceEntity,
		NotionalAmount:     r.NotionalAmount,
		Currency:           r.Currency,
		EffectiveDate:      r.EffectiveDate.UTC(),
		MaturityDate:       r.MaturityDate.UTC(),
		SwapType:           domain.SwapType(r.SwapType),
		PaymentFrequency:   domain.PaymentFrequency(r.PaymentFrequency),
		FixedRate:          r.FixedRate,
		FloatingRateIndex:  r.FloatingRateIndex,
		FloatingRateSpread: r.FloatingRateSpread,
		CollateralTerms:    r.CollateralTerms,
		AdditionalTerms:    r.AdditionalTerms,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
}

type obligationRecord struct {
	ID             int64      `gorm:"primaryKey;column:id;autoIncrement"`
	SwapID         int64      `gorm:"column:swap_id;index;not null"`
	ObligationType string     `gorm:"column:obligation_type;type:varchar(64);not null"`
	Amount         float64    `gorm:"column:amount;not null"`
	Currency       string     `gorm:"column:currency;type:varchar(8);not null"`
	DueDate        *time.Time `gorm:"column:due_date"`
	Status         string     `gorm:"column:status;type:varchar(32);not null"`
	Description    string     `gorm:"column:description;type:text"`
}

// TableName returns the GORM table name.
func (obligationRecord) TableName() string { return "swap_obligations" }

func obligationFromDomain(o *domain.SwapObligation) *obligationRecord {
	r := &obligationRecord{
		SwapID:         o.SwapID,
		ObligationType: o.Type,
		Amount:         o.Amount,
		Currency:       o.Currency,
		Status:         o.Status,
		Description:    o.Description,
	}
	if o.DueDate != nil {
		d := o.DueDate.UTC()
		r.DueDate = &d
	}
	return r
}

func (r *obligationRecord) toDomain() *domain.SwapObligation {
	o := &domain.SwapObligation{
		ID:          r.ID,
		SwapID:      r.SwapID,
		Type:        r.ObligationType,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Status:      r.Status,
		Description: r.Description,
	}
	if r.DueDate != nil {
		d := r.DueDate.UTC()
		o.DueDate = &d
	}
	return o
}

type triggerRecord struct {
	ID               int64  `gorm:"primaryKey;column:id;autoIncrement"`
	ObligationID     int64  `gorm:"column:obligation_id;index;not null"`
	TriggerType      string `gorm:"column:trigger_type;type:varchar(32);not null"`
	TriggerCondition string `gorm:"column:trigger_condition;type:text;not null"`
	Description      string `gorm:"column:description;type:text"`
	IsActive         bool   `gorm:"column:is_active;not null"`
}

// TableName returns the GORM table name.
func (triggerRecord) TableName() string { return "obligation_triggers" }

func triggerFromDomain(t *domain.ObligationTrigger) *triggerRecord {
	return &triggerRecord{
		ObligationID:     t.ObligationID,
		TriggerType:      t.Type,
		TriggerCondition: t.Condition,
		Description:      t.Description,
		IsActive:         t.IsActive,
	}
}

func (r *triggerRecord) toDomain() *domain.ObligationTrigger {
	return &domain.ObligationTrigger{
		ID:           r.ID,
		ObligationID: r.ObligationID,
		Type:         r.TriggerType,
		Condition:    r.TriggerCondition,
		Description:  r.Description,
		IsActive:     r.IsActive,
	}
}

type instrumentRecord struct {
	ID             int64    `gorm:"primaryKey;column:id;autoIncrement"`
	SwapID         int64    `gorm:"column:swap_id;index;not null"`
	SecurityID     int64    `gorm:"column:security_id;index;not null"`
	InstrumentType string   `gorm:"column:instrument_type;type:varchar(32);not null"`
	Description    string   `gorm:"column:description;type:text"`
	Quantity       *float64 `gorm:"column:quantity"`
	NotionalAmount *float64 `gorm:"column:notional_amount"`
	Currency       string   `gorm:"column:currency;type:varchar(8)"`
}

// TableName returns the GORM table name.
func (instrumentRecord) TableName() string { return "underlying_instruments" }

func instrumentFromDomain(in *domain.UnderlyingInstrument) *instrumentRecord {
	return &instrumentRecord{
		SwapID:         in.SwapID,
		SecurityID:     in.SecurityID,
		InstrumentType: in.InstrumentType,
		Description:    in.Description,
		Quantity:       in.Quantity,
		NotionalAmount: in.Notional,
		Currency:       in.Currency,
	}
}

func (r *instrumentRecord) toDomain(sec *securityRecord) *domain.UnderlyingInstrument {
	in := &domain.UnderlyingInstrument{
		ID:             r.ID,
		SwapID:         r.SwapID,
		SecurityID:     r.SecurityID,
		InstrumentType: r.InstrumentType,
		Description:    r.Description,
		Quantity:       r.Quantity,
		Notional:       r.NotionalAmount,
		Currency:       r.Currency,
	}
	if sec != nil {
		in.Identifier = sec.Identifier
		if in.Description == "" && sec.Description != nil {
			in.Description = *sec.Description
		}
	}
	return in
}

type analysisRecord struct {
	ID           int64           `gorm:"primaryKey;column:id;autoIncrement"`
	SwapID       int64           `gorm:"column:swap_id;uniqueIndex:idx_swap_analysis_swap_id;not null"`
	AnalysisText string          `gorm:"column:analysis_text;type:text"`
	RiskScore    float64         `gorm:"column:risk_score"`
	KeyRisks     JSONStringSlice `gorm:"column:key_risks;type:text"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (analysisRecord) TableName() string { return "swap_analysis" }

func (r *analysisRecord) toDomain() *domain.SwapAnalysis {
	return &domain.SwapAnalysis{
		ID:           r.ID,
		SwapID:       r.SwapID,
		AnalysisText: r.AnalysisText,
		RiskScore:    r.RiskScore,
		KeyRisks:     []string(r.KeyRisks),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type riskSnapshotRecord struct {
	ID                int64     `gorm:"primaryKey;column:id;autoIncrement"`
	SubjectKind       string    `gorm:"column:subject_kind;type:varchar(32);index:idx_risk_history_subject,priority:1;not null"`
	SubjectKey        string    `gorm:"column:subject_key;type:varchar(255);index:idx_risk_history_subject,priority:2;not null"`
	Subject           string    `gorm:"column:subject;type:varchar(255);not null"`
	Score             float64   `gorm:"column:score"`
	Level             string    `gorm:"column:level;type:varchar(16)"`
	NotionalScore     float64   `gorm:"column:notional_score"`
	MaturityScore     float64   `gorm:"column:maturity_score"`
	CounterpartyScore float64   `gorm:"column:counterparty_score"`
	CurrencyScore     float64   `gorm:"column:currency_score"`
	TypeScore         float64   `gorm:"column:type_score"`
	TotalNotional     float64   `gorm:"column:total_notional"`
	NumSwaps          int       `gorm:"column:num_swaps"`
	ScoredAt          time.Time `gorm:"column:scored_at;index:idx_risk_history_subject,priority:3;not null"`
}

// TableName returns the GORM table name.
func (riskSnapshotRecord) TableName() string { return "risk_history" }
