package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// MonthStatus is the reconciliation result of a single month.
type MonthStatus string

const (
	// StatusNA marks months the student is not billed for.
	StatusNA MonthStatus = "N/A"
	// StatusPaid means the month's payments cover the fee.
	StatusPaid MonthStatus = "Paid"
	// StatusPartiallyPaid means something was paid but less than the fee.
	StatusPartiallyPaid MonthStatus = "PartiallyPaid"
	// StatusUnpaid means nothing was paid for a month already over.
	StatusUnpaid MonthStatus = "Unpaid"
	// StatusPending means nothing was paid yet and the month is not late.
	StatusPending MonthStatus = "Pending"
)

// Display returns the short label shown in the ledger table.
func (s MonthStatus) Display() string {
	if s == StatusPending {
		return "-"
	}
	return string(s)
}

// CountsAsDebt reports whether months with this status contribute to debt.
func (s MonthStatus) CountsAsDebt() bool {
	return s == StatusUnpaid || s == StatusPartiallyPaid
}

// MonthEntry is one row of the ledger.
type MonthEntry struct {
	Month  time.Month
	Status MonthStatus
	// Paid is the sum of the student's payments dated in the month.
	Paid decimal.Decimal
	// Debt is what the month contributes to the total debt.
	Debt decimal.Decimal
}

// Ledger is the per-month fee table of a student for one calendar year.
type Ledger struct {
	StudentID     string
	Year          int
	ReferenceDate time.Time
	MonthlyFee    decimal.Decimal

	// Months always holds the twelve months, January first.
	Months [12]MonthEntry

	TotalDebt decimal.Decimal

	// Skipped is set when the student is not billable at all.
	Skipped bool

	// Unreconciled holds the student's payments of this year dated before the
	// enrollment month, including every payment of a year before enrollment.
	// They are neither debt nor credit.
	Unreconciled []Payment
}

func newLedger(s *student.Student, year int, referenceDate time.Time) *Ledger {
	l := &Ledger{
		StudentID:     s.ID,
		Year:          year,
		ReferenceDate: referenceDate,
		MonthlyFee:    s.MonthlyFee,
		TotalDebt:     decimal.Zero,
	}
	for i := range l.Months {
		l.Months[i] = MonthEntry{
			Month:  time.Month(i + 1),
			Status: StatusNA,
			Paid:   decimal.Zero,
			Debt:   decimal.Zero,
		}
	}
	return l
}

// Reconcile computes the fee ledger of a student for a calendar year.
//
// Months from the enrollment month up to the reference month are reconciled
// against the summed payments of each month. The reference month is never
// Unpaid: with nothing paid it stays Pending. Months after the reference month
// are display-only and never add debt. Payments of other students are ignored.
func Reconcile(s *student.Student, payments []Payment, year int, referenceDate time.Time) *Ledger {
	l := newLedger(s, year, referenceDate)

	if !s.IsBillable() {
		l.Skipped = true
		return l
	}

	enrolled := shared.YearMonthOf(*s.EnrollmentDate)

	var sums [12]decimal.Decimal
	for i := range sums {
		sums[i] = decimal.Zero
	}
	for _, p := range payments {
		if p.StudentID != s.ID || p.Date.Year() != year {
			continue
		}
		if shared.YearMonthOf(p.Date).Before(enrolled) {
			l.Unreconciled = append(l.Unreconciled, p)
			continue
		}
		idx := int(p.Date.Month()) - 1
		sums[idx] = sums[idx].Add(p.Amount)
	}
	if year < enrolled.Year {
		return l
	}

	start := 0
	if year == enrolled.Year {
		start = enrolled.Index()
	}

	fee := s.MonthlyFee
	ref := shared.YearMonthOf(referenceDate)

	for i := start; i < 12; i++ {
		ym := shared.YearMonth{Year: year, Month: time.Month(i + 1)}
		paid := sums[i]
		entry := MonthEntry{Month: ym.Month, Paid: paid, Debt: decimal.Zero}

		switch {
		case ref.Before(ym):
			// Not due yet. Prepaid months show as paid.
			if paid.GreaterThanOrEqual(fee) {
				entry.Status = StatusPaid
			} else {
				entry.Status = StatusPending
			}
		case paid.GreaterThanOrEqual(fee):
			entry.Status = StatusPaid
		case paid.IsPositive():
			entry.Status = StatusPartiallyPaid
			entry.Debt = fee.Sub(paid)
		case ym.Before(ref):
			entry.Status = StatusUnpaid
			entry.Debt = fee
		default:
			entry.Status = StatusPending
		}

		l.Months[i] = entry
		l.TotalDebt = l.TotalDebt.Add(entry.Debt)
	}

	return l
}

// Month returns the entry of a month.
func (l *Ledger) Month(m time.Month) MonthEntry {
	return l.Months[m-1]
}

// HasDebt reports whether the student owes anything.
func (l *Ledger) HasDebt() bool {
	return l.TotalDebt.IsPositive()
}

// MonthsWithStatus returns the months with the given status, in calendar order.
func (l *Ledger) MonthsWithStatus(status MonthStatus) []time.Month {
	var out []time.Month
	for _, e := range l.Months {
		if e.Status == status {
			out = append(out, e.Month)
		}
	}
	return out
}

// UnpaidMonths returns the months with nothing paid that are already late.
func (l *Ledger) UnpaidMonths() []time.Month {
	return l.MonthsWithStatus(StatusUnpaid)
}

// PartialMonths returns the partially paid months.
func (l *Ledger) PartialMonths() []time.Month {
	return l.MonthsWithStatus(StatusPartiallyPaid)
}

// TotalPaid sums the amounts of all reconciled months.
func (l *Ledger) TotalPaid() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range l.Months {
		sum = sum.Add(e.Paid)
	}
	return sum
}

// MonthNames converts months to their Spanish names.
func MonthNames(months []time.Month) []string {
	names := make([]string, 0, len(months))
	for _, m := range months {
		names = append(names, shared.MonthName(m))
	}
	return names
}
