// Package normalization maps heterogeneous swap records onto the canonical
// contract model.
package normalization

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field is a canonical contract field name.
type Field string

const (
	FieldContractID         Field = "contract_id"
	FieldCounterparty       Field = "counterparty"
	FieldReferenceEntity    Field = "reference_entity"
	FieldNotionalAmount     Field = "notional_amount"
	FieldCurrency           Field = "currency"
	FieldEffectiveDate      Field = "effective_date"
	FieldMaturityDate       Field = "maturity_date"
	FieldSwapType           Field = "swap_type"
	FieldPaymentFrequency   Field = "payment_frequency"
	FieldFixedRate          Field = "fixed_rate"
	FieldFloatingRateIndex  Field = "floating_rate_index"
	FieldFloatingRateSpread Field = "floating_rate_spread"
	FieldCollateralTerms    Field = "collateral_terms"
	FieldAdditionalTerms    Field = "additional_terms"
)

// RequiredFields must be present for a row to be accepted.
var RequiredFields = []Field{
	FieldContractID,
	FieldCounterparty,
	FieldReferenceEntity,
	FieldNotionalAmount,
	FieldEffectiveDate,
	FieldMaturityDate,
}

// FieldMap holds, per canonical field, the ordered list of accepted source
// keys. Keys are compared case-insensitively; the first present synonym wins.
type FieldMap struct {
	synonyms map[Field][]string
}

// DefaultFieldMap returns the built-in synonym table.
func DefaultFieldMap() *FieldMap {
	return &FieldMap{synonyms: map[Field][]string{
		FieldContractID:         {"contract_id", "id", "swap_id", "contractid", "dissemination identifier"},
		FieldCounterparty:       {"counterparty", "cp", "party", "prime brokerage transaction indicator"},
		FieldReferenceEntity:    {"reference_entity", "reference", "underlying", "entity", "underlying asset name", "underlier id-leg 1"},
		FieldNotionalAmount:     {"notional_amount", "notional", "amount", "size", "notional amount-leg 1"},
		FieldCurrency:           {"currency", "ccy", "curr", "notional currency-leg 1"},
		FieldEffectiveDate:      {"effective_date", "start_date", "trade_date", "effective date"},
		FieldMaturityDate:       {"maturity_date", "end_date", "expiration date", "expiry_date"},
		FieldSwapType:           {"swap_type", "type", "product", "asset class"},
		FieldPaymentFrequency:   {"payment_frequency", "freq", "payment", "fixed rate payment frequency period-leg 1"},
		FieldFixedRate:          {"fixed_rate", "rate", "coupon", "fixed rate-leg 1"},
		FieldFloatingRateIndex:  {"floating_rate_index", "index", "floating_index"},
		FieldFloatingRateSpread: {"floating_rate_spread", "spread", "margin", "spread-leg 1"},
		FieldCollateralTerms:    {"collateral_terms", "collateral", "margin_terms"},
		FieldAdditionalTerms:    {"additional_terms", "terms", "misc"},
	}}
}

// LoadFieldMap returns the default table extended with the synonyms in a
// YAML file of the form:
//
//	notional_amount:
//	  - "notional amount (usd)"
func LoadFieldMap(path string) (*FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field map: %w", err)
	}

	var extra map[string][]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse field map: %w", err)
	}

	m := DefaultFieldMap()
	for field, synonyms := range extra {
		f := Field(strings.ToLower(strings.TrimSpace(field)))
		if _, known := m.synonyms[f]; !known {
			return nil, fmt.Errorf("field map: unknown field %q", field)
		}
		m.Extend(f, synonyms...)
	}
	return m, nil
}

// Extend appends synonyms for a field after the existing ones.
func (m *FieldMap) Extend(f Field, synonyms ...string) {
	for _, s := range synonyms {
		key := normalizeKey(s)
		if key == "" || containsString(m.synonyms[f], key) {
			continue
		}
		m.synonyms[f] = append(m.synonyms[f], key)
	}
}

// Synonyms returns the ordered synonyms of a field.
func (m *FieldMap) Synonyms(f Field) []string {
	return append([]string(nil), m.synonyms[f]...)
}

// Lookup returns the value of the first synonym of f present in row with a
// non-empty value. Row keys must already be normalized.
func (m *FieldMap) Lookup(row Row, f Field) (any, bool) {
	for _, key := range m.synonyms[f] {
		v, ok := row[key]
		if !ok || isBlank(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		trimmed := strings.TrimSpace(s)
		return trimmed == "" || strings.EqualFold(trimmed, "nan") || strings.EqualFold(trimmed, "null")
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
