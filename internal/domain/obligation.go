package domain

import "time"

// Obligation types produced by derivation. Explicit obligations from terms
// may carry any other string.
const (
	ObligationFixedPayment       = "fixed_payment"
	ObligationFloatingPayment    = "floating_payment"
	ObligationPremiumPayment     = "premium_payment"
	ObligationProtectionPayment  = "protection_payment"
	ObligationTotalReturnPayment = "total_return_payment"
)

// Obligation status values.
const (
	StatusPending    = "pending"
	StatusContingent = "contingent"
	StatusPaid       = "paid"
	StatusDefaulted  = "defaulted"
)

// Trigger types.
const (
	TriggerCreditEvent = "credit_event"
	TriggerTimeBased   = "time_based"
	TriggerPerformance = "performance"
	TriggerCustom      = "custom"
)

// Instrument types.
const (
	InstrumentEquity = "equity"
	InstrumentBond   = "bond"
	InstrumentIndex  = "index"
	InstrumentOther  = "other"
)

// SwapObligation is a single payment duty owned by a contract.
// Corresponds to swap_obligations table.
type SwapObligation struct {
	ID          int64
	SwapID      int64 // FK to swaps, cascade delete
	Type        string
	Amount      float64
	Currency    string
	DueDate     *time.Time // nil means contingent, no fixed date
	Status      string
	Description string
}

// IsContingent reports whether the obligation has no fixed due date.
func (o *SwapObligation) IsContingent() bool {
	return o.DueDate == nil
}

// ObligationTrigger is the condition activating an obligation.
// Corresponds to obligation_triggers table.
type ObligationTrigger struct {
	ID           int64
	ObligationID int64 // FK to swap_obligations, cascade delete
	Type         string
	Condition    string
	Description  string
	IsActive     bool // inactive triggers are hidden from the read view
}

// UnderlyingInstrument is an asset underlying a swap.
// Corresponds to underlying_instruments table.
type UnderlyingInstrument struct {
	ID             int64
	SwapID         int64  // FK to swaps, cascade delete
	SecurityID     int64  // FK to reference_securities
	Identifier     string // reference security identifier (joined on read)
	InstrumentType string
	Description    string
	Quantity       *float64
	Notional       *float64
	Currency       string
}

// SwapAnalysis is the optional 1:1 companion of a contract written by the
// risk scorer. Corresponds to swap_analysis table.
type SwapAnalysis struct {
	ID           int64
	SwapID       int64 // unique FK to swaps
	AnalysisText string
	RiskScore    float64
	KeyRisks     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
