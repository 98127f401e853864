// Package command contains write operations (CQRS - Commands). Commands store
// raw facts and publish an event; derived views are recomputed by whoever
// reads them.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/validation"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/logger"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD PAYMENT COMMAND
// Stores a collection (cobro) from a student.
// ══════════════════════════════════════════════════════════════════════════════

// RecordPaymentCommand contains the payment to store.
type RecordPaymentCommand struct {
	StudentID string          `json:"student_id" validate:"required"`
	Date      time.Time       `json:"date" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Concept   string          `json:"concept" validate:"max=200"`

	// Method accepts English or Spanish names; empty means cash.
	Method string `json:"method"`
}

// RecordPaymentResult is the stored payment.
type RecordPaymentResult struct {
	Payment *billing.Payment
}

// RecordPaymentHandler handles RecordPaymentCommand.
type RecordPaymentHandler struct {
	studentRepo    student.Repository
	paymentRepo    billing.PaymentRepository
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewRecordPaymentHandler creates the handler.
func NewRecordPaymentHandler(
	studentRepo student.Repository,
	paymentRepo billing.PaymentRepository,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *RecordPaymentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RecordPaymentHandler{
		studentRepo:    studentRepo,
		paymentRepo:    paymentRepo,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("record_payment")),
	}
}

// Handle executes the command.
func (h *RecordPaymentHandler) Handle(ctx context.Context, cmd RecordPaymentCommand) (*RecordPaymentResult, error) {
	if err := validation.Struct("billing", "RecordPayment", cmd); err != nil {
		return nil, err
	}

	method, err := billing.ParseMethod(cmd.Method)
	if err != nil {
		return nil, err
	}

	exists, err := h.studentRepo.Exists(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("record_payment: check student: %w", err)
	}
	if !exists {
		return nil, shared.ErrStudentNotFound
	}

	payment, err := billing.NewPayment(billing.NewPaymentParams{
		ID:        uuid.NewString(),
		StudentID: cmd.StudentID,
		Date:      timeutil.StartOfDay(cmd.Date),
		Amount:    cmd.Amount,
		Concept:   cmd.Concept,
		Method:    method,
	})
	if err != nil {
		return nil, err
	}

	if err := h.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("record_payment: store: %w", err)
	}

	h.log.Info("payment recorded",
		logger.PaymentID(payment.ID),
		logger.StudentID(payment.StudentID),
		logger.Amount(payment.Amount),
		logger.Date(payment.Date),
	)

	event := shared.NewPaymentRecordedEvent(payment.ID, payment.StudentID, payment.Amount.String(), payment.Concept, payment.Date)
	if err := h.eventPublisher.Publish(event); err != nil {
		h.log.Warn("failed to publish payment event", logger.PaymentID(payment.ID), logger.Err(err))
	}

	return &RecordPaymentResult{Payment: payment}, nil
}
