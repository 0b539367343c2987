package domain

import (
	"strings"
	"time"
)

// SwapType is the closed set of swap families the system understands.
type SwapType string

const (
	SwapTypeCreditDefault SwapType = "credit_default"
	SwapTypeInterestRate  SwapType = "interest_rate"
	SwapTypeTotalReturn   SwapType = "total_return"
	SwapTypeCurrency      SwapType = "currency"
	SwapTypeCommodity     SwapType = "commodity"
	SwapTypeEquity        SwapType = "equity"
	SwapTypeOther         SwapType = "other"
)

// AllSwapTypes lists every SwapType in declaration order.
var AllSwapTypes = []SwapType{
	SwapTypeCreditDefault,
	SwapTypeInterestRate,
	SwapTypeTotalReturn,
	SwapTypeCurrency,
	SwapTypeCommodity,
	SwapTypeEquity,
	SwapTypeOther,
}

// String returns the string representation of SwapType.
func (t SwapType) String() string {
	return string(t)
}

// IsValid checks if the swap type is one of the known values.
func (t SwapType) IsValid() bool {
	for _, known := range AllSwapTypes {
		if t == known {
			return true
		}
	}
	return false
}

// swapTypeAliases maps common source spellings to swap types.
var swapTypeAliases = map[string]SwapType{
	"cds":                 SwapTypeCreditDefault,
	"credit":              SwapTypeCreditDefault,
	"credit_default_swap": SwapTypeCreditDefault,
	"irs":                 SwapTypeInterestRate,
	"rates":               SwapTypeInterestRate,
	"interest":            SwapTypeInterestRate,
	"trs":                 SwapTypeTotalReturn,
	"total_return_swap":   SwapTypeTotalReturn,
	"fx":                  SwapTypeCurrency,
	"forex":               SwapTypeCurrency,
	"foreign_exchange":    SwapTypeCurrency,
	"equities":            SwapTypeEquity,
	"commodities":         SwapTypeCommodity,
}

// ParseSwapType parses a swap type case-insensitively. Spaces and hyphens are
// treated as underscores. Unrecognized input returns SwapTypeOther and false.
func ParseSwapType(s string) (SwapType, bool) {
	key := enumKey(s)
	if key == "" {
		return SwapTypeOther, false
	}
	if t := SwapType(key); t.IsValid() {
		return t, true
	}
	if t, ok := swapTypeAliases[key]; ok {
		return t, true
	}
	return SwapTypeOther, false
}

// PaymentFrequency is the closed set of payment schedules.
type PaymentFrequency string

const (
	FrequencyDaily      PaymentFrequency = "daily"
	FrequencyWeekly     PaymentFrequency = "weekly"
	FrequencyMonthly    PaymentFrequency = "monthly"
	FrequencyQuarterly  PaymentFrequency = "quarterly"
	FrequencySemiAnnual PaymentFrequency = "semi_annual"
	FrequencyAnnual     PaymentFrequency = "annual"
	FrequencyAtMaturity PaymentFrequency = "at_maturity"
)

// AllPaymentFrequencies lists every PaymentFrequency in declaration order.
var AllPaymentFrequencies = []PaymentFrequency{
	FrequencyDaily,
	FrequencyWeekly,
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencySemiAnnual,
	FrequencyAnnual,
	FrequencyAtMaturity,
}

// String returns the string representation of PaymentFrequency.
func (f PaymentFrequency) String() string {
	return string(f)
}

// IsValid checks if the frequency is one of the known values.
func (f PaymentFrequency) IsValid() bool {
	for _, known := range AllPaymentFrequencies {
		if f == known {
			return true
		}
	}
	return false
}

var frequencyAliases = map[string]PaymentFrequency{
	"d":          FrequencyDaily,
	"1d":         FrequencyDaily,
	"w":          FrequencyWeekly,
	"1w":         FrequencyWeekly,
	"m":          FrequencyMonthly,
	"1m":         FrequencyMonthly,
	"q":          FrequencyQuarterly,
	"3m":         FrequencyQuarterly,
	"s":          FrequencySemiAnnual,
	"6m":         FrequencySemiAnnual,
	"semiannual": FrequencySemiAnnual,
	"semi":       FrequencySemiAnnual,
	"a":          FrequencyAnnual,
	"y":          FrequencyAnnual,
	"1y":         FrequencyAnnual,
	"12m":        FrequencyAnnual,
	"yearly":     FrequencyAnnual,
	"maturity":   FrequencyAtMaturity,
	"bullet":     FrequencyAtMaturity,
}

// ParsePaymentFrequency parses a payment frequency case-insensitively.
// Unrecognized input returns FrequencyQuarterly and false.
func ParsePaymentFrequency(s string) (PaymentFrequency, bool) {
	key := enumKey(s)
	if key == "" {
		return FrequencyQuarterly, false
	}
	if f := PaymentFrequency(key); f.IsValid() {
		return f, true
	}
	if f, ok := frequencyAliases[key]; ok {
		return f, true
	}
	return FrequencyQuarterly, false
}

func enumKey(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	return key
}

// DefaultCurrency is used when a source row carries no currency.
const DefaultCurrency = "USD"

// SwapContract is the canonical swap record.
// Corresponds to swaps table in PostgreSQL.
type SwapContract struct {
	ID                 int64            `json:"id"`                             // surrogate primary key
	ContractID         string           `json:"contract_id"`                    // natural key, globally unique
	CounterpartyID     int64            `json:"counterparty_id"`                // FK to counterparties
	Counterparty       string           `json:"counterparty"`                   // counterparty name (joined on read)
	ReferenceEntity    string           `json:"reference_entity"`               // security/company the payout depends on
	NotionalAmount     float64          `json:"notional_amount"`                // non-negative
	Currency           string           `json:"currency"`                       // ISO code
	EffectiveDate      time.Time        `json:"effective_date"`                 // start of the contract
	MaturityDate       time.Time        `json:"maturity_date"`                  // >= EffectiveDate
	SwapType           SwapType         `json:"swap_type"`                      // closed enum
	PaymentFrequency   PaymentFrequency `json:"payment_frequency"`              // closed enum
	FixedRate          *float64         `json:"fixed_rate,omitempty"`           // percent, e.g. 4.0
	FloatingRateIndex  *string          `json:"floating_rate_index,omitempty"`  // e.g. SOFR
	FloatingRateSpread *float64         `json:"floating_rate_spread,omitempty"` // basis spread
	CollateralTerms    Terms            `json:"collateral_terms,omitempty"`     // opaque
	AdditionalTerms    Terms            `json:"additional_terms,omitempty"`     // opaque
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Validate checks the contract-level invariants.
func (c *SwapContract) Validate() error {
	switch {
	case strings.TrimSpace(c.ContractID) == "":
		return &ValidationError{Field: "contract_id", Reason: "missing"}
	case strings.TrimSpace(c.Counterparty) == "":
		return &ValidationError{Field: "counterparty", Reason: "missing"}
	case strings.TrimSpace(c.ReferenceEntity) == "":
		return &ValidationError{Field: "reference_entity", Reason: "missing"}
	case c.NotionalAmount < 0:
		return &ValidationError{Field: "notional_amount", Reason: "negative"}
	case c.EffectiveDate.IsZero():
		return &ValidationError{Field: "effective_date", Reason: "missing"}
	case c.MaturityDate.IsZero():
		return &ValidationError{Field: "maturity_date", Reason: "missing"}
	case c.MaturityDate.Before(c.EffectiveDate):
		return &ValidationError{Field: "maturity_date", Reason: "before effective_date"}
	}
	return nil
}

// Clone returns a deep copy of the contract.
func (c *SwapContract) Clone() *SwapContract {
	if c == nil {
		return nil
	}
	out := *c
	if c.FixedRate != nil {
		v := *c.FixedRate
		out.FixedRate = &v
	}
	if c.FloatingRateIndex != nil {
		v := *c.FloatingRateIndex
		out.FloatingRateIndex = &v
	}
	if c.FloatingRateSpread != nil {
		v := *c.FloatingRateSpread
		out.FloatingRateSpread = &v
	}
	out.CollateralTerms = c.CollateralTerms.Clone()
	out.AdditionalTerms = c.AdditionalTerms.Clone()
	return &out
}

// ValidationError describes why a record failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
