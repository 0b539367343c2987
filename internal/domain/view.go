package domain

import "time"

// ObligationViewRow is one row of the flattened obligations read view:
// contract x obligation x underlying instrument x active trigger.
// Columns from the left-joined tables are nil when absent.
type ObligationViewRow struct {
	SwapID          int64     `json:"swap_id"`
	ContractID      string    `json:"contract_id"`
	Counterparty    string    `json:"counterparty"`
	ReferenceEntity string    `json:"reference_entity"`
	NotionalAmount  float64   `json:"notional_amount"`
	Currency        string    `json:"currency"`
	EffectiveDate   time.Time `json:"effective_date"`
	MaturityDate    time.Time `json:"maturity_date"`
	SwapType        SwapType  `json:"swap_type"`

	ObligationID          *int64     `json:"obligation_id,omitempty"`
	ObligationType        *string    `json:"obligation_type,omitempty"`
	ObligationAmount      *float64   `json:"obligation_amount,omitempty"`
	ObligationCurrency    *string    `json:"obligation_currency,omitempty"`
	DueDate               *time.Time `json:"due_date,omitempty"`
	ObligationStatus      *string    `json:"obligation_status,omitempty"`
	ObligationDescription *string    `json:"obligation_description,omitempty"`

	InstrumentType        *string  `json:"instrument_type,omitempty"`
	InstrumentIdentifier  *string  `json:"instrument_identifier,omitempty"`
	InstrumentDescription *string  `json:"instrument_description,omitempty"`
	Quantity              *float64 `json:"quantity,omitempty"`
	InstrumentNotional    *float64 `json:"instrument_notional,omitempty"`

	TriggerType        *string `json:"trigger_type,omitempty"`
	TriggerCondition   *string `json:"trigger_condition,omitempty"`
	TriggerDescription *string `json:"trigger_description,omitempty"`
}

// RiskSnapshot is an append-only record of one scoring of a subject.
type RiskSnapshot struct {
	SubjectKind       string    `json:"subject_kind"` // "entity" or "counterparty"
	Subject           string    `json:"subject"`
	Score             float64   `json:"score"`
	Level             string    `json:"level"`
	NotionalScore     float64   `json:"notional_score"`
	MaturityScore     float64   `json:"maturity_score"`
	CounterpartyScore float64   `json:"counterparty_score"`
	CurrencyScore     float64   `json:"currency_score"`
	TypeScore         float64   `json:"type_score"`
	TotalNotional     float64   `json:"total_notional"`
	NumSwaps          int       `json:"num_swaps"`
	ScoredAt          time.Time `json:"scored_at"`
}

// Subject kinds for risk snapshots.
const (
	SubjectEntity       = "entity"
	SubjectCounterparty = "counterparty"
)
