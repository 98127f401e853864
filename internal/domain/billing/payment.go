// Package billing contains the fee ledger reconciler and the payment-derived
// views of the studio: the dashboard overview and the quarterly split.
//
// Every function in this package is pure. Callers load full snapshots of
// students and payments and pass them in; nothing is cached between calls.
package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Method is how a payment was collected.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
	MethodBizum    Method = "bizum"
)

// IsValid reports whether the method is known.
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodBizum:
		return true
	default:
		return false
	}
}

// ParseMethod normalizes a method name. Empty input defaults to cash.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return MethodCash, nil
	case "cash", "efectivo":
		return MethodCash, nil
	case "card", "tarjeta":
		return MethodCard, nil
	case "transfer", "transferencia":
		return MethodTransfer, nil
	case "bizum":
		return MethodBizum, nil
	default:
		return "", shared.NewDomainError("billing", "ParseMethod", shared.ErrInvalidFormat, "unknown payment method "+s)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT
// ══════════════════════════════════════════════════════════════════════════════

// monthlyFeeMarker is the concept substring that marks a monthly fee payment.
const monthlyFeeMarker = "cuota"

// IsMonthlyFee classifies a payment concept as monthly-fee income.
// The rule is a case-insensitive substring match on "cuota".
func IsMonthlyFee(concept string) bool {
	return strings.Contains(strings.ToLower(concept), monthlyFeeMarker)
}

// Payment is a single collection (cobro) from a student. Payments are
// append-only facts; corrections go through an explicit admin update.
type Payment struct {
	ID        string
	StudentID string
	Date      time.Time
	Amount    decimal.Decimal
	Concept   string
	Method    Method
	CreatedAt time.Time
}

// NewPaymentParams holds the input for recording a payment.
type NewPaymentParams struct {
	ID        string
	StudentID string
	Date      time.Time
	Amount    decimal.Decimal
	Concept   string
	Method    Method
}

// NewPayment validates and creates a payment.
func NewPayment(params NewPaymentParams) (*Payment, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, shared.NewDomainError("billing", "Record", shared.ErrInvalidID, "payment id is required")
	}
	if strings.TrimSpace(params.StudentID) == "" {
		return nil, shared.NewDomainError("billing", "Record", shared.ErrInvalidID, "student id is required")
	}
	if params.Date.IsZero() {
		return nil, shared.ErrMissingPaymentDate
	}
	if !params.Amount.IsPositive() {
		return nil, shared.ErrNonPositiveAmount
	}

	method := params.Method
	if method == "" {
		method = MethodCash
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("billing", "Record", shared.ErrInvalidFormat, "unknown payment method")
	}

	return &Payment{
		ID:        params.ID,
		StudentID: params.StudentID,
		Date:      params.Date,
		Amount:    params.Amount,
		Concept:   strings.TrimSpace(params.Concept),
		Method:    method,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// IsMonthlyFee reports whether this payment is monthly-fee income.
func (p Payment) IsMonthlyFee() bool {
	return IsMonthlyFee(p.Concept)
}

// In reports whether the payment is dated within the given month.
func (p Payment) In(ym shared.YearMonth) bool {
	return ym.Contains(p.Date)
}

// Total sums the amounts of the payments.
func Total(payments []Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// GroupByStudent indexes payments by student id.
func GroupByStudent(payments []Payment) map[string][]Payment {
	out := make(map[string][]Payment)
	for _, p := range payments {
		out[p.StudentID] = append(out[p.StudentID], p)
	}
	return out
}
