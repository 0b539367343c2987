package reporting

import (
	"encoding/json"
	"strconv"

	"github.com/gocarina/gocsv"

	"swap-risk-lab/internal/domain"
)

// RenderContractsCSV renders contracts as CSV with a header row. The
// columns match the canonical field names so the output can be ingested
// again.
func RenderContractsCSV(contracts []*domain.SwapContract) (string, error) {
	rows := make([]*contractRow, 0, len(contracts))
	for _, c := range contracts {
		rows = append(rows, toContractRow(c))
	}
	return gocsv.MarshalString(&rows)
}

// RenderObligationsCSV renders read-view rows as CSV with a header row.
func RenderObligationsCSV(view []*domain.ObligationViewRow) (string, error) {
	rows := make([]*obligationRow, 0, len(view))
	for _, r := range view {
		rows = append(rows, toObligationRow(r))
	}
	return gocsv.MarshalString(&rows)
}

func toContractRow(c *domain.SwapContract) *contractRow {
	row := &contractRow{
		ContractID:         c.ContractID,
		Counterparty:       c.Counterparty,
		ReferenceEntity:    c.ReferenceEntity,
		NotionalAmount:     c.NotionalAmount,
		Currency:           c.Currency,
		EffectiveDate:      c.EffectiveDate.Format(dateLayout),
		MaturityDate:       c.MaturityDate.Format(dateLayout),
		SwapType:           c.SwapType.String(),
		PaymentFrequency:   c.PaymentFrequency.String(),
		FixedRate:          formatFloat(c.FixedRate),
		FloatingRateSpread: formatFloat(c.FloatingRateSpread),
		CollateralTerms:    termsJSON(c.CollateralTerms),
		AdditionalTerms:    termsJSON(c.AdditionalTerms),
	}
	if c.FloatingRateIndex != nil {
		row.FloatingRateIndex = *c.FloatingRateIndex
	}
	return row
}

func toObligationRow(r *domain.ObligationViewRow) *obligationRow {
	row := &obligationRow{
		ContractID:           r.ContractID,
		Counterparty:         r.Counterparty,
		ReferenceEntity:      r.ReferenceEntity,
		SwapType:             r.SwapType.String(),
		ObligationType:       str(r.ObligationType),
		ObligationAmount:     formatFloat(r.ObligationAmount),
		ObligationCurrency:   str(r.ObligationCurrency),
		ObligationStatus:     str(r.ObligationStatus),
		InstrumentIdentifier: str(r.InstrumentIdentifier),
		InstrumentType:       str(r.InstrumentType),
		TriggerType:          str(r.TriggerType),
		TriggerCondition:     str(r.TriggerCondition),
	}
	if r.DueDate != nil {
		row.DueDate = r.DueDate.Format(dateLayout)
	} else if r.ObligationID != nil {
		row.DueDate = "contingent"
	}
	return row
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func termsJSON(t domain.Terms) string {
	if len(t) == 0 {
		return ""
	}
	b, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return string(b)
}
