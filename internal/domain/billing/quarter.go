package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
)

// QuarterMonth holds the totals of one month of a quarter.
type QuarterMonth struct {
	Month time.Month
	Fees  decimal.Decimal
	Other decimal.Decimal
}

// Total returns fees plus other income.
func (q QuarterMonth) Total() decimal.Decimal {
	return q.Fees.Add(q.Other)
}

// StudentQuarter holds the quarter totals of one student.
type StudentQuarter struct {
	StudentID string
	Fees      decimal.Decimal
	Other     decimal.Decimal
	Payments  int
}

// Total returns fees plus other income.
func (s StudentQuarter) Total() decimal.Decimal {
	return s.Fees.Add(s.Other)
}

// QuarterSplit separates the income of a quarter into monthly fees and the
// rest, per month and per student.
type QuarterSplit struct {
	Year    int
	Quarter int
	Months  [3]QuarterMonth

	// Students is sorted by student id.
	Students []StudentQuarter

	Fees     decimal.Decimal
	Other    decimal.Decimal
	Payments int
}

// Total returns the whole income of the quarter.
func (q *QuarterSplit) Total() decimal.Decimal {
	return q.Fees.Add(q.Other)
}

// QuarterOf returns the quarter (1..4) a date falls in.
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// QuarterMonths returns the three months of a quarter.
func QuarterMonths(quarter int) ([3]time.Month, error) {
	if quarter < 1 || quarter > 4 {
		return [3]time.Month{}, shared.ErrInvalidQuarter
	}
	first := time.Month((quarter-1)*3 + 1)
	return [3]time.Month{first, first + 1, first + 2}, nil
}

// SplitQuarter totals the payments of a quarter. A payment counts as a
// monthly fee when IsMonthlyFee matches its concept.
func SplitQuarter(payments []Payment, year, quarter int) (*QuarterSplit, error) {
	months, err := QuarterMonths(quarter)
	if err != nil {
		return nil, err
	}

	qs := &QuarterSplit{
		Year:     year,
		Quarter:  quarter,
		Fees:     decimal.Zero,
		Other:    decimal.Zero,
		Students: []StudentQuarter{},
	}
	for i, m := range months {
		qs.Months[i] = QuarterMonth{Month: m, Fees: decimal.Zero, Other: decimal.Zero}
	}

	perStudent := make(map[string]*StudentQuarter)

	for _, p := range payments {
		if p.Date.Year() != year || QuarterOf(p.Date) != quarter {
			continue
		}
		idx := (int(p.Date.Month()) - 1) % 3

		sq, ok := perStudent[p.StudentID]
		if !ok {
			sq = &StudentQuarter{StudentID: p.StudentID, Fees: decimal.Zero, Other: decimal.Zero}
			perStudent[p.StudentID] = sq
		}
		sq.Payments++
		qs.Payments++

		if p.IsMonthlyFee() {
			qs.Months[idx].Fees = qs.Months[idx].Fees.Add(p.Amount)
			sq.Fees = sq.Fees.Add(p.Amount)
			qs.Fees = qs.Fees.Add(p.Amount)
		} else {
			qs.Months[idx].Other = qs.Months[idx].Other.Add(p.Amount)
			sq.Other = sq.Other.Add(p.Amount)
			qs.Other = qs.Other.Add(p.Amount)
		}
	}

	for _, sq := range perStudent {
		qs.Students = append(qs.Students, *sq)
	}
	sort.Slice(qs.Students, func(i, j int) bool {
		return qs.Students[i].StudentID < qs.Students[j].StudentID
	})

	return qs, nil
}
