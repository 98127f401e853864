package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PAYMENT RECORDED HANDLER
// Reconciles the paying student's year again and announces when the payment
// settled all outstanding debt.
// ═══════════════════════════════════════════════════════════════════════════

// OnPaymentRecordedHandler handles billing.payment_recorded.
type OnPaymentRecordedHandler struct {
	studentRepo    student.Repository
	paymentRepo    billing.PaymentRepository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
	now            func() time.Time
	timeout        time.Duration
}

// NewOnPaymentRecordedHandler creates the handler.
func NewOnPaymentRecordedHandler(
	studentRepo student.Repository,
	paymentRepo billing.PaymentRepository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *OnPaymentRecordedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnPaymentRecordedHandler{
		studentRepo:    studentRepo,
		paymentRepo:    paymentRepo,
		eventPublisher: eventPublisher,
		logger:         logger.With("handler", "on_payment_recorded"),
		now:            timeutil.Now,
		timeout:        10 * time.Second,
	}
}

// EventType returns the handled event type.
func (h *OnPaymentRecordedHandler) EventType() shared.EventType {
	return shared.EventPaymentRecorded
}

// Handle implements shared.EventHandler.
func (h *OnPaymentRecordedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	studentID := event.AggregateID()
	paymentID, err := payloadString(event, "payment_id")
	if err != nil {
		return err
	}
	paidOn, err := payloadDate(event, "date")
	if err != nil {
		return err
	}

	s, err := h.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		if shared.IsNotFound(err) {
			h.logger.Warn("payment for unknown student", "student_id", studentID, "payment_id", paymentID)
			return nil
		}
		return err
	}
	if !s.IsBillable() {
		return nil
	}

	payments, err := h.paymentRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return err
	}

	before := make([]billing.Payment, 0, len(payments))
	for _, p := range payments {
		if p.ID != paymentID {
			before = append(before, p)
		}
	}

	year := paidOn.Year()
	ref := timeutil.StartOfDay(h.now())
	if ref.Year() > year {
		// Every month of a past year is due, December included.
		ref = timeutil.Date(year+1, time.January, 1)
	}

	prev := billing.Reconcile(s, before, year, ref)
	curr := billing.Reconcile(s, payments, year, ref)

	h.logger.Debug("ledger recomputed",
		"student_id", studentID,
		"year", year,
		"debt_before", prev.TotalDebt.String(),
		"debt_after", curr.TotalDebt.String(),
	)

	if prev.HasDebt() && !curr.HasDebt() {
		h.logger.Info("debt cleared", "student_id", studentID, "year", year)
		return h.eventPublisher.Publish(shared.NewDebtClearedEvent(studentID, year))
	}
	return nil
}
