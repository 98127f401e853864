package billing

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// Debtor is a row of the unpaid-student reminder list.
type Debtor struct {
	StudentID     string
	Name          string
	Phone         shared.Phone
	UnpaidMonths  []time.Month
	PartialMonths []time.Month
	Debt          decimal.Decimal
	// CanRemind is set when the student has a phone to send the reminder to.
	CanRemind bool
}

// UnpaidMonthNames returns the Spanish names of the unpaid months.
func (d Debtor) UnpaidMonthNames() []string {
	return MonthNames(d.UnpaidMonths)
}

// PartialMonthNames returns the Spanish names of the partially paid months.
func (d Debtor) PartialMonthNames() []string {
	return MonthNames(d.PartialMonths)
}

// Overview aggregates the ledgers of every billable student.
type Overview struct {
	ReferenceDate time.Time
	Year          int

	// PendingAmount is the total debt of all billable students.
	PendingAmount decimal.Decimal

	// CollectedThisMonth sums every payment dated in the reference month,
	// whatever the concept or student.
	CollectedThisMonth decimal.Decimal

	// BillableStudents counts active students with a positive fee.
	BillableStudents int

	// Debtors is sorted by debt descending, then by name.
	Debtors []Debtor
}

// BuildOverview reconciles every active student with a monthly fee for the
// year of the reference date and aggregates the results.
func BuildOverview(students []*student.Student, payments []Payment, referenceDate time.Time) *Overview {
	ov := &Overview{
		ReferenceDate:      referenceDate,
		Year:               referenceDate.Year(),
		PendingAmount:      decimal.Zero,
		CollectedThisMonth: decimal.Zero,
		Debtors:            []Debtor{},
	}

	ref := shared.YearMonthOf(referenceDate)
	for _, p := range payments {
		if p.In(ref) {
			ov.CollectedThisMonth = ov.CollectedThisMonth.Add(p.Amount)
		}
	}

	byStudent := GroupByStudent(payments)

	for _, s := range students {
		if s == nil || !s.Active || !s.MonthlyFee.IsPositive() {
			continue
		}
		ov.BillableStudents++

		ledger := Reconcile(s, byStudent[s.ID], ov.Year, referenceDate)
		if !ledger.HasDebt() {
			continue
		}

		ov.PendingAmount = ov.PendingAmount.Add(ledger.TotalDebt)
		ov.Debtors = append(ov.Debtors, Debtor{
			StudentID:     s.ID,
			Name:          s.Name,
			Phone:         s.Phone,
			UnpaidMonths:  ledger.UnpaidMonths(),
			PartialMonths: ledger.PartialMonths(),
			Debt:          ledger.TotalDebt,
			CanRemind:     s.HasPhone(),
		})
	}

	sort.SliceStable(ov.Debtors, func(i, j int) bool {
		a, b := ov.Debtors[i], ov.Debtors[j]
		if c := a.Debt.Cmp(b.Debt); c != 0 {
			return c > 0
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	return ov
}

// Remindable returns the debtors that have a phone number.
func (o *Overview) Remindable() []Debtor {
	out := make([]Debtor, 0, len(o.Debtors))
	for _, d := range o.Debtors {
		if d.CanRemind {
			out = append(out, d)
		}
	}
	return out
}
