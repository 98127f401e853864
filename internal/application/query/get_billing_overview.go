package query

import (
	"context"
	"fmt"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BILLING OVERVIEW QUERY
// Dashboard totals and the unpaid-student reminder list.
// ══════════════════════════════════════════════════════════════════════════════

// GetBillingOverviewQuery asks for the overview at a reference date.
type GetBillingOverviewQuery struct {
	// ReferenceDate defaults to today in the studio timezone.
	ReferenceDate time.Time
}

// DebtorDTO is a row of the reminder list.
type DebtorDTO struct {
	StudentID     string   `json:"student_id"`
	Name          string   `json:"name"`
	Phone         string   `json:"phone,omitempty"`
	UnpaidMonths  []string `json:"unpaid_months"`
	PartialMonths []string `json:"partial_months"`
	Debt          string   `json:"debt"`
	CanRemind     bool     `json:"can_remind"`

	// WhatsAppLink opens a chat with the reminder text prefilled. Empty when
	// the student has no phone.
	WhatsAppLink string `json:"whatsapp_link,omitempty"`
}

// BillingOverviewDTO is the billing dashboard.
type BillingOverviewDTO struct {
	ReferenceDate      string      `json:"reference_date"`
	Year               int         `json:"year"`
	PendingAmount      string      `json:"pending_amount"`
	CollectedThisMonth string      `json:"collected_this_month"`
	BillableStudents   int         `json:"billable_students"`
	Debtors            []DebtorDTO `json:"debtors"`
}

// GetBillingOverviewHandler handles GetBillingOverviewQuery.
type GetBillingOverviewHandler struct {
	studentRepo student.Repository
	paymentRepo billing.PaymentRepository
	links       LinkSettings
	clock       Clock
}

// NewGetBillingOverviewHandler creates the handler.
func NewGetBillingOverviewHandler(
	studentRepo student.Repository,
	paymentRepo billing.PaymentRepository,
	links LinkSettings,
	clock Clock,
) *GetBillingOverviewHandler {
	return &GetBillingOverviewHandler{
		studentRepo: studentRepo,
		paymentRepo: paymentRepo,
		links:       links,
		clock:       clock,
	}
}

// Handle runs the query.
func (h *GetBillingOverviewHandler) Handle(ctx context.Context, q GetBillingOverviewQuery) (*BillingOverviewDTO, error) {
	ref := referenceDay(q.ReferenceDate, h.clock)

	students, err := h.studentRepo.List(ctx, student.DefaultListOptions())
	if err != nil {
		return nil, fmt.Errorf("get_billing_overview: list students: %w", err)
	}
	payments, err := h.paymentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_billing_overview: list payments: %w", err)
	}

	ov := billing.BuildOverview(students, payments, ref)

	dto := &BillingOverviewDTO{
		ReferenceDate:      dateString(ov.ReferenceDate),
		Year:               ov.Year,
		PendingAmount:      money(ov.PendingAmount),
		CollectedThisMonth: money(ov.CollectedThisMonth),
		BillableStudents:   ov.BillableStudents,
		Debtors:            make([]DebtorDTO, 0, len(ov.Debtors)),
	}
	for _, d := range ov.Debtors {
		row := DebtorDTO{
			StudentID:     d.StudentID,
			Name:          d.Name,
			Phone:         string(d.Phone),
			UnpaidMonths:  d.UnpaidMonthNames(),
			PartialMonths: d.PartialMonthNames(),
			Debt:          money(d.Debt),
			CanRemind:     d.CanRemind,
		}
		if r, err := notification.NewFeeReminder(d, h.links.StudioName, ref); err == nil {
			row.WhatsAppLink = r.Link(h.links.DefaultCountryCode)
		}
		dto.Debtors = append(dto.Debtors, row)
	}
	return dto, nil
}
