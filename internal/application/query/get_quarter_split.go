package query

import (
	"context"
	"fmt"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/validation"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET QUARTER SPLIT QUERY
// Quarterly income split into monthly fees and other income.
// ══════════════════════════════════════════════════════════════════════════════

// GetQuarterSplitQuery asks for one quarter.
type GetQuarterSplitQuery struct {
	Year    int `json:"year" validate:"min=2000,max=2100"`
	Quarter int `json:"quarter"`
}

// QuarterMonthDTO holds the totals of one month.
type QuarterMonthDTO struct {
	Month int    `json:"month"`
	Name  string `json:"name"`
	Fees  string `json:"fees"`
	Other string `json:"other"`
	Total string `json:"total"`
}

// StudentQuarterDTO holds the totals of one student.
type StudentQuarterDTO struct {
	StudentID string `json:"student_id"`
	Fees      string `json:"fees"`
	Other     string `json:"other"`
	Total     string `json:"total"`
	Payments  int    `json:"payments"`
}

// QuarterSplitDTO is the quarterly summary.
type QuarterSplitDTO struct {
	Year     int                 `json:"year"`
	Quarter  int                 `json:"quarter"`
	Months   []QuarterMonthDTO   `json:"months"`
	Students []StudentQuarterDTO `json:"students"`
	Fees     string              `json:"fees"`
	Other    string              `json:"other"`
	Total    string              `json:"total"`
	Payments int                 `json:"payments"`
}

// GetQuarterSplitHandler handles GetQuarterSplitQuery.
type GetQuarterSplitHandler struct {
	paymentRepo billing.PaymentRepository
}

// NewGetQuarterSplitHandler creates the handler.
func NewGetQuarterSplitHandler(paymentRepo billing.PaymentRepository) *GetQuarterSplitHandler {
	return &GetQuarterSplitHandler{paymentRepo: paymentRepo}
}

// Handle runs the query. Only the payments of the quarter are loaded.
func (h *GetQuarterSplitHandler) Handle(ctx context.Context, q GetQuarterSplitQuery) (*QuarterSplitDTO, error) {
	if err := validation.Struct("billing", "GetQuarterSplit", q); err != nil {
		return nil, err
	}

	months, err := billing.QuarterMonths(q.Quarter)
	if err != nil {
		return nil, err
	}
	from := timeutil.Date(q.Year, months[0], 1)
	to := from.AddDate(0, 3, 0)

	payments, err := h.paymentRepo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("get_quarter_split: list payments: %w", err)
	}

	split, err := billing.SplitQuarter(payments, q.Year, q.Quarter)
	if err != nil {
		return nil, err
	}

	dto := &QuarterSplitDTO{
		Year:     split.Year,
		Quarter:  split.Quarter,
		Months:   make([]QuarterMonthDTO, 0, 3),
		Students: make([]StudentQuarterDTO, 0, len(split.Students)),
		Fees:     money(split.Fees),
		Other:    money(split.Other),
		Total:    money(split.Total()),
		Payments: split.Payments,
	}
	for _, m := range split.Months {
		dto.Months = append(dto.Months, QuarterMonthDTO{
			Month: int(m.Month),
			Name:  shared.MonthName(m.Month),
			Fees:  money(m.Fees),
			Other: money(m.Other),
			Total: money(m.Total()),
		})
	}
	for _, s := range split.Students {
		dto.Students = append(dto.Students, StudentQuarterDTO{
			StudentID: s.StudentID,
			Fees:      money(s.Fees),
			Other:     money(s.Other),
			Total:     money(s.Total()),
			Payments:  s.Payments,
		})
	}
	return dto, nil
}
