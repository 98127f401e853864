// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrAlreadyNotified = errors.New("already notified")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "student", "billing", "attendance"
	Op      string // Operation that failed, e.g., "Create", "Reconcile"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student domain errors
var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrAlreadyExists, "student already exists")
	ErrInvalidStudentName   = NewDomainError("student", "Validate", ErrEmptyValue, "student name is required")
	ErrNegativeFee          = NewDomainError("student", "Validate", ErrNegativeValue, "monthly fee cannot be negative")
)

// Billing domain errors
var (
	ErrPaymentNotFound    = NewDomainError("billing", "Find", ErrNotFound, "payment not found")
	ErrNonPositiveAmount  = NewDomainError("billing", "Validate", ErrValueOutOfRange, "payment amount must be positive")
	ErrMissingPaymentDate = NewDomainError("billing", "Validate", ErrEmptyValue, "payment date is required")
	ErrInvalidQuarter     = NewDomainError("billing", "SplitQuarter", ErrValueOutOfRange, "quarter must be between 1 and 4")
	ErrInvalidYear        = NewDomainError("billing", "Reconcile", ErrValueOutOfRange, "year out of range")
)

// Attendance domain errors
var (
	ErrClassNotFound     = NewDomainError("attendance", "FindClass", ErrNotFound, "class not found")
	ErrInvalidWeekday    = NewDomainError("attendance", "ParseWeekday", ErrInvalidFormat, "unknown weekday name")
	ErrInvalidTimeOfDay  = NewDomainError("attendance", "ParseTime", ErrInvalidFormat, "time of day must be HH:MM")
	ErrMissingRecordDate = NewDomainError("attendance", "Validate", ErrEmptyValue, "attendance date is required")
)

// Notification domain errors
var (
	ErrNoPhone             = NewDomainError("notification", "Remind", ErrInvalidState, "student has no phone number")
	ErrReminderSentAlready = NewDomainError("notification", "Remind", ErrAlreadyNotified, "reminder already sent this month")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
