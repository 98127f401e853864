package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// Helpers
// ══════════════════════════════════════════════════════════════════════════════

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(money(want)), "want %s, got %s", want, got.String())
}

func newStudent(t *testing.T, id string, enrolled *time.Time, fee string) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:             id,
		Name:           "Student " + id,
		EnrollmentDate: enrolled,
		MonthlyFee:     money(fee),
	})
	require.NoError(t, err)
	return s
}

func ptr(t time.Time) *time.Time { return &t }

func pay(studentID string, date time.Time, amount, concept string) Payment {
	return Payment{
		ID:        studentID + date.Format("20060102") + amount,
		StudentID: studentID,
		Date:      date,
		Amount:    money(amount),
		Concept:   concept,
		Method:    MethodCash,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// Scenarios
// ══════════════════════════════════════════════════════════════════════════════

func TestReconcile_MidYearEnrollmentScenario(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2024, time.March, 1)), "19")
	payments := []Payment{
		pay("s1", day(2024, time.March, 3), "19", "Cuota marzo"),
		pay("s1", day(2024, time.April, 2), "19", "Cuota abril"),
	}

	l := Reconcile(s, payments, 2024, day(2024, time.June, 15))

	assert.Equal(t, StatusNA, l.Month(time.January).Status)
	assert.Equal(t, StatusNA, l.Month(time.February).Status)

	assert.Equal(t, StatusPaid, l.Month(time.March).Status)
	assertMoney(t, "19", l.Month(time.March).Paid)
	assert.Equal(t, StatusPaid, l.Month(time.April).Status)
	assertMoney(t, "19", l.Month(time.April).Paid)

	assert.Equal(t, StatusUnpaid, l.Month(time.May).Status)
	assertMoney(t, "19", l.Month(time.May).Debt)

	assert.Equal(t, StatusPending, l.Month(time.June).Status)
	assert.Equal(t, "-", l.Month(time.June).Status.Display())
	assertMoney(t, "0", l.Month(time.June).Debt)

	assertMoney(t, "19", l.TotalDebt)
	assert.Equal(t, []time.Month{time.May}, l.UnpaidMonths())
	assert.False(t, l.Skipped)
}

func TestReconcile_PartialPayment(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2024, time.January, 10)), "19")
	payments := []Payment{
		pay("s1", day(2024, time.January, 5), "19", "cuota"),
		pay("s1", day(2024, time.February, 5), "10", "cuota"),
		pay("s1", day(2024, time.March, 5), "19", "cuota"),
	}

	l := Reconcile(s, payments, 2024, day(2024, time.March, 20))

	feb := l.Month(time.February)
	assert.Equal(t, StatusPartiallyPaid, feb.Status)
	assertMoney(t, "10", feb.Paid)
	assertMoney(t, "9", feb.Debt)
	assertMoney(t, "9", l.TotalDebt)
	assert.Equal(t, []time.Month{time.February}, l.PartialMonths())
}

// ══════════════════════════════════════════════════════════════════════════════
// Properties
// ══════════════════════════════════════════════════════════════════════════════

func TestReconcile_SkippedStudentsAreAllNA(t *testing.T) {
	ref := day(2024, time.June, 15)
	payments := []Payment{pay("s1", day(2024, time.February, 1), "50", "cuota")}

	free := newStudent(t, "s1", ptr(day(2023, time.January, 1)), "0")
	inactive := newStudent(t, "s1", ptr(day(2023, time.January, 1)), "19")
	inactive.Deactivate()
	noEnrollment := newStudent(t, "s1", nil, "19")

	for name, s := range map[string]*student.Student{
		"zero fee":      free,
		"inactive":      inactive,
		"no enrollment": noEnrollment,
	} {
		t.Run(name, func(t *testing.T) {
			l := Reconcile(s, payments, 2024, ref)
			assert.True(t, l.Skipped)
			assert.True(t, l.TotalDebt.IsZero())
			for _, e := range l.Months {
				assert.Equal(t, StatusNA, e.Status, e.Month.String())
			}
		})
	}
}

func TestReconcile_MonthsBeforeEnrollmentAreNA(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2024, time.May, 20)), "19")
	payments := []Payment{
		pay("s1", day(2024, time.February, 1), "19", "cuota"),
		pay("s1", day(2024, time.April, 30), "5", "matrícula"),
	}

	l := Reconcile(s, payments, 2024, day(2024, time.July, 1))

	for m := time.January; m < time.May; m++ {
		assert.Equal(t, StatusNA, l.Month(m).Status, m.String())
		assert.True(t, l.Month(m).Paid.IsZero())
	}
	assert.Len(t, l.Unreconciled, 2)

	// May and June are late, July is the reference month.
	assert.Equal(t, StatusUnpaid, l.Month(time.May).Status)
	assert.Equal(t, StatusUnpaid, l.Month(time.June).Status)
	assert.Equal(t, StatusPending, l.Month(time.July).Status)
	assertMoney(t, "38", l.TotalDebt)
}

func TestReconcile_YearBeforeEnrollment(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2024, time.March, 1)), "19")
	payments := []Payment{
		pay("s1", day(2023, time.May, 1), "19", "cuota"),
		pay("s1", day(2023, time.December, 28), "30", "reserva de plaza"),
		pay("s1", day(2024, time.March, 2), "19", "cuota"),
		pay("s2", day(2023, time.May, 1), "19", "cuota"),
	}
	l := Reconcile(s, payments, 2023, day(2024, time.June, 1))

	for _, e := range l.Months {
		assert.Equal(t, StatusNA, e.Status)
		assert.True(t, e.Paid.IsZero())
	}
	assert.True(t, l.TotalDebt.IsZero())
	assert.False(t, l.Skipped)

	require.Len(t, l.Unreconciled, 2, "only the student's payments of that year")
	assertMoney(t, "19", l.Unreconciled[0].Amount)
	assertMoney(t, "30", l.Unreconciled[1].Amount)
}

func TestReconcile_PaidMonthNeverAddsDebt(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2023, time.June, 1)), "19")
	payments := []Payment{
		pay("s1", day(2024, time.January, 2), "10", "cuota"),
		pay("s1", day(2024, time.January, 20), "9", "cuota"),
		pay("s1", day(2024, time.February, 2), "25", "cuota + camiseta"),
	}

	l := Reconcile(s, payments, 2024, day(2024, time.March, 1))

	assert.Equal(t, StatusPaid, l.Month(time.January).Status)
	// Payments in the same month are summed.
	assertMoney(t, "19", l.Month(time.January).Paid)
	assert.Equal(t, StatusPaid, l.Month(time.February).Status)
	assertMoney(t, "25", l.Month(time.February).Paid)
	assert.True(t, l.Month(time.February).Debt.IsZero())
	assert.True(t, l.TotalDebt.IsZero())
}

func TestReconcile_GraceBoundary(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2024, time.January, 1)), "30")
	payments := []Payment{pay("s1", day(2024, time.January, 3), "30", "cuota")}

	tests := []struct {
		name      string
		ref       time.Time
		feb       MonthStatus
		totalDebt string
	}{
		{"last day of february", time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC), StatusPending, "0"},
		{"first day of march", day(2024, time.March, 1), StatusUnpaid, "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Reconcile(s, payments, 2024, tt.ref)
			assert.Equal(t, tt.feb, l.Month(time.February).Status)
			assertMoney(t, tt.totalDebt, l.TotalDebt)
		})
	}
}

func TestReconcile_PastYearReconcilesAllMonths(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2022, time.September, 1)), "20")
	var payments []Payment
	for m := time.January; m <= time.October; m++ {
		payments = append(payments, pay("s1", day(2023, m, 1), "20", "cuota"))
	}

	l := Reconcile(s, payments, 2023, day(2024, time.January, 15))

	assert.Equal(t, StatusUnpaid, l.Month(time.November).Status)
	assert.Equal(t, StatusUnpaid, l.Month(time.December).Status)
	assertMoney(t, "40", l.TotalDebt)
}

func TestReconcile_FutureMonthsAreDisplayOnly(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2024, time.January, 1)), "19")
	payments := []Payment{
		pay("s1", day(2024, time.September, 1), "19", "cuota adelantada"),
		pay("s1", day(2024, time.October, 1), "5", "cuota"),
	}

	l := Reconcile(s, payments, 2024, day(2024, time.January, 10))

	assert.Equal(t, StatusPaid, l.Month(time.September).Status)
	assert.Equal(t, StatusPending, l.Month(time.October).Status)
	assertMoney(t, "5", l.Month(time.October).Paid)
	assert.Equal(t, StatusPending, l.Month(time.December).Status)
	assert.True(t, l.TotalDebt.IsZero())

	future := Reconcile(s, nil, 2025, day(2024, time.January, 10))
	for _, e := range future.Months {
		assert.Equal(t, StatusPending, e.Status)
		assert.True(t, e.Debt.IsZero())
	}
}

func TestReconcile_IgnoresOtherStudentsAndYears(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2024, time.January, 1)), "19")
	payments := []Payment{
		pay("s2", day(2024, time.January, 1), "19", "cuota"),
		pay("s1", day(2023, time.January, 1), "19", "cuota"),
	}

	l := Reconcile(s, payments, 2024, day(2024, time.February, 1))

	assert.Equal(t, StatusUnpaid, l.Month(time.January).Status)
	assert.Equal(t, StatusPending, l.Month(time.February).Status)
	assertMoney(t, "19", l.TotalDebt)
}

func TestReconcile_DebtMatchesFlaggedMonths(t *testing.T) {
	s := newStudent(t, "s1", ptr(day(2023, time.November, 15)), "45.50")
	payments := []Payment{
		pay("s1", day(2024, time.January, 1), "45.50", "cuota"),
		pay("s1", day(2024, time.March, 1), "20", "cuota"),
		pay("s1", day(2024, time.April, 1), "60", "cuota"),
		pay("s1", day(2024, time.June, 1), "0.50", "cuota"),
	}

	l := Reconcile(s, payments, 2024, day(2024, time.August, 3))

	expected := decimal.Zero
	for _, e := range l.Months {
		if e.Status.CountsAsDebt() {
			expected = expected.Add(l.MonthlyFee.Sub(e.Paid))
		} else {
			assert.True(t, e.Debt.IsZero(), e.Month.String())
		}
		assert.False(t, e.Debt.IsNegative())
	}
	assert.True(t, expected.Equal(l.TotalDebt))
	// Feb, May, Jul unpaid; Mar and Jun partial; August pending.
	assertMoney(t, "45.50", l.Month(time.July).Debt)
	assertMoney(t, "25.50", l.Month(time.March).Debt)
	assertMoney(t, "45.00", l.Month(time.June).Debt)
	assertMoney(t, "207.00", l.TotalDebt)
	assert.Equal(t, StatusPending, l.Month(time.August).Status)
}

func TestMonthNames(t *testing.T) {
	assert.Equal(t, []string{"enero", "mayo"}, MonthNames([]time.Month{time.January, time.May}))
	assert.Empty(t, MonthNames(nil))
}
