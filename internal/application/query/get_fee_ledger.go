package query

import (
	"context"
	"fmt"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/validation"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET FEE LEDGER QUERY
// The twelve-month fee table of one student: what was paid each month, the
// month's status and the total debt up to the reference date.
// ══════════════════════════════════════════════════════════════════════════════

// Supported ledger years.
const (
	MinLedgerYear = 2000
	MaxLedgerYear = 2100
)

// GetFeeLedgerQuery asks for a student's ledger.
type GetFeeLedgerQuery struct {
	StudentID string `json:"student_id" validate:"required"`

	// Year defaults to the year of the reference date.
	Year int `json:"year" validate:"omitempty,min=2000,max=2100"`

	// ReferenceDate defaults to today in the studio timezone.
	ReferenceDate time.Time `json:"reference_date"`
}

// LedgerMonthDTO is one row of the ledger.
type LedgerMonthDTO struct {
	Month   int    `json:"month"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Display string `json:"display"`
	Paid    string `json:"paid"`
	Debt    string `json:"debt"`
}

// PaymentDTO is a payment as shown to staff.
type PaymentDTO struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	Concept   string `json:"concept"`
	Method    string `json:"method"`
	IsFee     bool   `json:"is_monthly_fee"`
}

// NewPaymentDTO converts a payment.
func NewPaymentDTO(p billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:        p.ID,
		StudentID: p.StudentID,
		Date:      dateString(p.Date),
		Amount:    money(p.Amount),
		Concept:   p.Concept,
		Method:    string(p.Method),
		IsFee:     p.IsMonthlyFee(),
	}
}

// FeeLedgerDTO is the ledger of one student for one year.
type FeeLedgerDTO struct {
	StudentID     string           `json:"student_id"`
	Name          string           `json:"name"`
	Year          int              `json:"year"`
	ReferenceDate string           `json:"reference_date"`
	MonthlyFee    string           `json:"monthly_fee"`
	Months        []LedgerMonthDTO `json:"months"`
	TotalPaid     string           `json:"total_paid"`
	TotalDebt     string           `json:"total_debt"`

	// Skipped is true for students that are not billed at all.
	Skipped bool `json:"skipped"`

	// Unreconciled lists payments of the year dated before enrollment.
	Unreconciled []PaymentDTO `json:"unreconciled"`
}

// NewFeeLedgerDTO converts a ledger.
func NewFeeLedgerDTO(s *student.Student, l *billing.Ledger) *FeeLedgerDTO {
	dto := &FeeLedgerDTO{
		StudentID:     s.ID,
		Name:          s.Name,
		Year:          l.Year,
		ReferenceDate: dateString(l.ReferenceDate),
		MonthlyFee:    money(l.MonthlyFee),
		Months:        make([]LedgerMonthDTO, 0, len(l.Months)),
		TotalPaid:     money(l.TotalPaid()),
		TotalDebt:     money(l.TotalDebt),
		Skipped:       l.Skipped,
		Unreconciled:  make([]PaymentDTO, 0, len(l.Unreconciled)),
	}
	for _, m := range l.Months {
		dto.Months = append(dto.Months, LedgerMonthDTO{
			Month:   int(m.Month),
			Name:    shared.MonthName(m.Month),
			Status:  string(m.Status),
			Display: m.Status.Display(),
			Paid:    money(m.Paid),
			Debt:    money(m.Debt),
		})
	}
	for _, p := range l.Unreconciled {
		dto.Unreconciled = append(dto.Unreconciled, NewPaymentDTO(p))
	}
	return dto
}

// GetFeeLedgerHandler handles GetFeeLedgerQuery.
type GetFeeLedgerHandler struct {
	studentRepo student.Repository
	paymentRepo billing.PaymentRepository
	clock       Clock
}

// NewGetFeeLedgerHandler creates the handler. A nil clock means time.Now.
func NewGetFeeLedgerHandler(studentRepo student.Repository, paymentRepo billing.PaymentRepository, clock Clock) *GetFeeLedgerHandler {
	return &GetFeeLedgerHandler{studentRepo: studentRepo, paymentRepo: paymentRepo, clock: clock}
}

// Handle runs the query.
func (h *GetFeeLedgerHandler) Handle(ctx context.Context, q GetFeeLedgerQuery) (*FeeLedgerDTO, error) {
	if err := validation.Struct("billing", "GetFeeLedger", q); err != nil {
		return nil, err
	}

	ref := referenceDay(q.ReferenceDate, h.clock)
	year := q.Year
	if year == 0 {
		year = ref.Year()
	}
	if year < MinLedgerYear || year > MaxLedgerYear {
		return nil, shared.ErrInvalidYear
	}

	s, err := h.studentRepo.GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, err
	}

	payments, err := h.paymentRepo.ListByStudent(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("get_fee_ledger: list payments: %w", err)
	}

	return NewFeeLedgerDTO(s, billing.Reconcile(s, payments, year, ref)), nil
}
