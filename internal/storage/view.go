package storage

import "swap-risk-lab/internal/domain"

// JoinObligationView composes the read-view rows of one contract for
// backends that cannot express vw_swap_obligations in SQL. It produces
// contract x obligation x instrument x trigger with left-join semantics:
// missing sides contribute one row of nil columns, and inactive triggers
// are filtered out. Instruments must have Identifier joined already, and
// their Description falls back to the security's; an empty description is
// NULL, as in vw_swap_obligations.
func JoinObligationView(
	c *domain.SwapContract,
	obligations []*domain.SwapObligation,
	triggers map[int64][]*domain.ObligationTrigger,
	instruments []*domain.UnderlyingInstrument,
) []*domain.ObligationViewRow {
	base := domain.ObligationViewRow{
		SwapID:          c.ID,
		ContractID:      c.ContractID,
		Counterparty:    c.Counterparty,
		ReferenceEntity: c.ReferenceEntity,
		NotionalAmount:  c.NotionalAmount,
		Currency:        c.Currency,
		EffectiveDate:   c.EffectiveDate,
		MaturityDate:    c.MaturityDate,
		SwapType:        c.SwapType,
	}

	// nil entries stand in for the NULL side of a left join.
	if len(obligations) == 0 {
		obligations = []*domain.SwapObligation{nil}
	}
	if len(instruments) == 0 {
		instruments = []*domain.UnderlyingInstrument{nil}
	}

	var rows []*domain.ObligationViewRow
	for _, o := range obligations {
		ts := []*domain.ObligationTrigger{nil}
		if o != nil && len(triggers[o.ID]) > 0 {
			ts = triggers[o.ID]
		}

		for _, in := range instruments {
			for _, t := range ts {
				if t != nil && !t.IsActive {
					continue
				}
				row := base
				fillObligation(&row, o)
				fillInstrument(&row, in)
				fillTrigger(&row, t)
				rows = append(rows, &row)
			}
		}
	}
	return rows
}

func fillObligation(row *domain.ObligationViewRow, o *domain.SwapObligation) {
	if o == nil {
		return
	}
	id, typ, amount, currency, status, desc := o.ID, o.Type, o.Amount, o.Currency, o.Status, o.Description
	row.ObligationID = &id
	row.ObligationType = &typ
	row.ObligationAmount = &amount
	row.ObligationCurrency = &currency
	row.ObligationStatus = &status
	row.ObligationDescription = &desc
	if o.DueDate != nil {
		d := *o.DueDate
		row.DueDate = &d
	}
}

func fillInstrument(row *domain.ObligationViewRow, in *domain.UnderlyingInstrument) {
	if in == nil {
		return
	}
	typ, ident := in.InstrumentType, in.Identifier
	row.InstrumentType = &typ
	row.InstrumentIdentifier = &ident
	if in.Description != "" {
		desc := in.Description
		row.InstrumentDescription = &desc
	}
	if in.Quantity != nil {
		q := *in.Quantity
		row.Quantity = &q
	}
	if in.Notional != nil {
		n := *in.Notional
		row.InstrumentNotional = &n
	}
}

func fillTrigger(row *domain.ObligationViewRow, t *domain.ObligationTrigger) {
	if t == nil {
		return
	}
	typ, cond, desc := t.Type, t.Condition, t.Description
	row.TriggerType = &typ
	row.TriggerCondition = &cond
	row.TriggerDescription = &desc
}
