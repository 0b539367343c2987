// Package reporting renders risk reports, contract exports and obligation
// listings as Markdown, CSV or JSON.
package reporting

import (
	"time"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/risk"
)

// Output formats accepted by Render.
const (
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// RiskReport is the full report of one scored subject.
type RiskReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	Kind        string    `json:"kind"`
	Subject     string    `json:"subject"`

	// Score
	Score      float64        `json:"risk_score"`
	Level      string         `json:"risk_level"`
	Grade      string         `json:"risk_grade"`
	Components risk.Breakdown `json:"components"`
	KeyRisks   []string       `json:"key_risks"`

	// Exposure
	TotalNotional    float64              `json:"total_notional"`
	NumSwaps         int                  `json:"num_swaps"`
	AvgNotional      float64              `json:"avg_notional"`
	EarliestMaturity time.Time            `json:"earliest_maturity"`
	LatestMaturity   time.Time            `json:"latest_maturity"`
	BySwapType       []exposure.Share     `json:"by_swap_type"`
	ByCurrency       []exposure.Share     `json:"by_currency"`
	ByCounterparty   []exposure.Share     `json:"by_counterparty"`
	Largest          *domain.SwapContract `json:"largest_contract,omitempty"`

	// Counterparty is set for counterparty reports only.
	Counterparty *exposure.CounterpartyAnalysis `json:"counterparty_analysis,omitempty"`
	Detailed     *exposure.DetailedAnalysis     `json:"detailed_analysis"`

	Obligations []*domain.ObligationViewRow `json:"obligations"`
	Narrative   string                      `json:"narrative,omitempty"` // empty when not requested
}

// contractRow is the CSV shape of a contract.
type contractRow struct {
	ContractID         string  `csv:"contract_id"`
	Counterparty       string  `csv:"counterparty"`
	ReferenceEntity    string  `csv:"reference_entity"`
	NotionalAmount     float64 `csv:"notional_amount"`
	Currency           string  `csv:"currency"`
	EffectiveDate      string  `csv:"effective_date"`
	MaturityDate       string  `csv:"maturity_date"`
	SwapType           string  `csv:"swap_type"`
	PaymentFrequency   string  `csv:"payment_frequency"`
	FixedRate          string  `csv:"fixed_rate"`
	FloatingRateIndex  string  `csv:"floating_rate_index"`
	FloatingRateSpread string  `csv:"floating_rate_spread"`
	CollateralTerms    string  `csv:"collateral_terms"`
	AdditionalTerms    string  `csv:"additional_terms"`
}

// obligationRow is the CSV shape of a read-view row.
type obligationRow struct {
	ContractID           string `csv:"contract_id"`
	Counterparty         string `csv:"counterparty"`
	ReferenceEntity      string `csv:"reference_entity"`
	SwapType             string `csv:"swap_type"`
	ObligationType       string `csv:"obligation_type"`
	ObligationAmount     string `csv:"obligation_amount"`
	ObligationCurrency   string `csv:"obligation_currency"`
	DueDate              string `csv:"due_date"`
	ObligationStatus     string `csv:"obligation_status"`
	InstrumentIdentifier string `csv:"instrument_identifier"`
	InstrumentType       string `csv:"instrument_type"`
	TriggerType          string `csv:"trigger_type"`
	TriggerCondition     string `csv:"trigger_condition"`
}
