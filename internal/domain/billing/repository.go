package billing

import (
	"context"
	"time"
)

// PaymentRepository defines storage operations for payments.
type PaymentRepository interface {
	// Create appends a new payment.
	Create(ctx context.Context, payment *Payment) error

	// GetByID returns a payment by id.
	// Returns shared.ErrPaymentNotFound when missing.
	GetByID(ctx context.Context, id string) (*Payment, error)

	// Update applies an explicit admin correction.
	// Returns shared.ErrPaymentNotFound when missing.
	Update(ctx context.Context, payment *Payment) error

	// List returns the full payment snapshot.
	List(ctx context.Context) ([]Payment, error)

	// ListByStudent returns every payment of a student, oldest first.
	ListByStudent(ctx context.Context, studentID string) ([]Payment, error)

	// ListBetween returns payments dated in [from, to), oldest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]Payment, error)
}
