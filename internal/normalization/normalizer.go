package normalization

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"swap-risk-lab/internal/domain"
)

// Skip reasons reported in SkippedRow.
const (
	ReasonMissingField    = "missing_field"
	ReasonInvalidDate     = "invalid_date"
	ReasonInvalidNotional = "invalid_notional"
	ReasonDateOrder       = "maturity_before_effective"
)

// SkippedRow records a row that could not be normalized.
type SkippedRow struct {
	Index  int    // position in the input
	Reason string // one of the Reason* constants
	Detail string
}

// Result is the outcome of normalizing a batch of rows.
type Result struct {
	Contracts    []*domain.SwapContract
	Skipped      []SkippedRow
	Unrecognized []string // enum values that fell back to a default
}

// SkippedByReason counts skipped rows per reason.
func (r *Result) SkippedByReason() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Skipped {
		out[s.Reason]++
	}
	return out
}

// Options configures a Normalizer.
type Options struct {
	FieldMap *FieldMap   // nil uses DefaultFieldMap
	Logger   *zap.Logger // nil disables logging
}

// Normalizer converts source rows into validated contracts. It has no side
// effects beyond logging.
type Normalizer struct {
	fields *FieldMap
	logger *zap.Logger
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	if opts.FieldMap == nil {
		opts.FieldMap = DefaultFieldMap()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Normalizer{fields: opts.FieldMap, logger: opts.Logger}
}

// NormalizeFile reads path and normalizes its rows. Only read and format
// errors are returned; bad rows are reported in the result.
func (n *Normalizer) NormalizeFile(path string) (*Result, error) {
	rows, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	res := n.Normalize(rows)
	if len(res.Skipped) > 0 {
		n.logger.Warn("skipped invalid rows",
			zap.String("file", path),
			zap.Int("skipped", len(res.Skipped)),
			zap.Any("reasons", res.SkippedByReason()),
		)
	}
	return res, nil
}

// Normalize maps every row; invalid rows are skipped, never fatal.
func (n *Normalizer) Normalize(rows []Row) *Result {
	res := &Result{}
	for i, row := range rows {
		c, unrecognized, skip := n.normalizeRow(row)
		res.Unrecognized = append(res.Unrecognized, unrecognized...)
		if skip != nil {
			skip.Index = i
			res.Skipped = append(res.Skipped, *skip)
			continue
		}
		res.Contracts = append(res.Contracts, c)
	}
	for _, v := range res.Unrecognized {
		n.logger.Debug("unrecognized enum value, using default", zap.String("value", v))
	}
	return res
}

// NormalizeRow maps a single row. The error is a *domain.ValidationError
// describing why the row was rejected.
func (n *Normalizer) NormalizeRow(row Row) (*domain.SwapContract, error) {
	c, _, skip := n.normalizeRow(row)
	if skip != nil {
		return nil, &domain.ValidationError{Field: skip.Reason, Reason: skip.Detail}
	}
	return c, nil
}

func (n *Normalizer) normalizeRow(raw Row) (*domain.SwapContract, []string, *SkippedRow) {
	row := make(Row, len(raw))
	for k, v := range raw {
		row[normalizeKey(k)] = v
	}

	values := make(map[Field]any)
	for _, f := range []Field{
		FieldContractID, FieldCounterparty, FieldReferenceEntity, FieldNotionalAmount,
		FieldCurrency, FieldEffectiveDate, FieldMaturityDate, FieldSwapType,
		FieldPaymentFrequency, FieldFixedRate, FieldFloatingRateIndex,
		FieldFloatingRateSpread, FieldCollateralTerms, FieldAdditionalTerms,
	} {
		if v, ok := n.fields.Lookup(row, f); ok {
			values[f] = v
		}
	}

	for _, f := range RequiredFields {
		if _, ok := values[f]; !ok {
			return nil, nil, &SkippedRow{Reason: ReasonMissingField, Detail: string(f)}
		}
	}

	effective, err := parseDate(values[FieldEffectiveDate])
	if err != nil {
		return nil, nil, &SkippedRow{Reason: ReasonInvalidDate, Detail: err.Error()}
	}
	maturity, err := parseDate(values[FieldMaturityDate])
	if err != nil {
		return nil, nil, &SkippedRow{Reason: ReasonInvalidDate, Detail: err.Error()}
	}
	if maturity.Before(effective) {
		return nil, nil, &SkippedRow{Reason: ReasonDateOrder, Detail: fmt.Sprintf("%s < %s",
			maturity.Format("2006-01-02"), effective.Format("2006-01-02"))}
	}

	notional, err := parseNumber(values[FieldNotionalAmount])
	if err != nil {
		return nil, nil, &SkippedRow{Reason: ReasonInvalidNotional, Detail: err.Error()}
	}
	if notional < 0 {
		return nil, nil, &SkippedRow{Reason: ReasonInvalidNotional, Detail: "negative notional"}
	}

	c := &domain.SwapContract{
		ContractID:       stringValue(values[FieldContractID]),
		Counterparty:     stringValue(values[FieldCounterparty]),
		ReferenceEntity:  stringValue(values[FieldReferenceEntity]),
		NotionalAmount:   notional,
		Currency:         domain.DefaultCurrency,
		EffectiveDate:    effective,
		MaturityDate:     maturity,
		SwapType:         domain.SwapTypeOther,
		PaymentFrequency: domain.FrequencyQuarterly,
	}
	if v, ok := values[FieldCurrency]; ok {
		c.Currency = strings.ToUpper(stringValue(v))
	}

	var unrecognized []string
	if v, ok := values[FieldSwapType]; ok {
		t, known := domain.ParseSwapType(stringValue(v))
		if !known {
			unrecognized = append(unrecognized, "swap_type="+stringValue(v))
		}
		c.SwapType = t
	}
	if v, ok := values[FieldPaymentFrequency]; ok {
		f, known := domain.ParsePaymentFrequency(stringValue(v))
		if !known {
			unrecognized = append(unrecognized, "payment_frequency="+stringValue(v))
		}
		c.PaymentFrequency = f
	}

	rate, ok := values[FieldFixedRate]
	c.FixedRate = optionalNumber(rate, ok)
	spread, ok := values[FieldFloatingRateSpread]
	c.FloatingRateSpread = optionalNumber(spread, ok)
	if v, ok := values[FieldFloatingRateIndex]; ok {
		idx := stringValue(v)
		c.FloatingRateIndex = &idx
	}
	if v, ok := values[FieldCollateralTerms]; ok {
		c.CollateralTerms = toTerms(v)
	}
	if v, ok := values[FieldAdditionalTerms]; ok {
		c.AdditionalTerms = toTerms(v)
	}

	if err := c.Validate(); err != nil {
		return nil, unrecognized, &SkippedRow{Reason: ReasonMissingField, Detail: err.Error()}
	}
	return c, unrecognized, nil
}

// toTerms accepts a JSON object, a string holding a JSON object, or any other
// scalar, which is kept under the "text" key.
func toTerms(v any) domain.Terms {
	switch t := v.(type) {
	case map[string]any:
		return domain.Terms(t)
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "{") {
			var obj map[string]any
			if err := json.Unmarshal([]byte(s), &obj); err == nil {
				return domain.Terms(obj)
			}
		}
		return domain.Terms{"text": s}
	default:
		return domain.Terms{"text": v}
	}
}
