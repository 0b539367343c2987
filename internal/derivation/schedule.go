package derivation

import (
	"time"

	"swap-risk-lab/internal/domain"
)

// PaymentsPerYear returns the number of payments per year for a frequency.
// Unknown frequencies are treated as quarterly.
func PaymentsPerYear(f domain.PaymentFrequency) int {
	switch f {
	case domain.FrequencyDaily:
		return 365
	case domain.FrequencyWeekly:
		return 52
	case domain.FrequencyMonthly:
		return 12
	case domain.FrequencyQuarterly:
		return 4
	case domain.FrequencySemiAnnual:
		return 2
	case domain.FrequencyAnnual, domain.FrequencyAtMaturity:
		return 1
	default:
		return 4
	}
}

// NextPaymentDate returns the first payment date after start. Only monthly,
// quarterly, semi-annual and annual schedules have their own period; every
// other frequency falls back to one quarter. A day past the end of the
// target month is clamped to its last day (Jan 31 + 1 month = Feb 28).
func NextPaymentDate(start time.Time, f domain.PaymentFrequency) time.Time {
	switch f {
	case domain.FrequencyMonthly:
		return addMonths(start, 1)
	case domain.FrequencySemiAnnual:
		return addMonths(start, 6)
	case domain.FrequencyAnnual:
		return addMonths(start, 12)
	default:
		return addMonths(start, 3)
	}
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
