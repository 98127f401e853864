// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Every change to the raw collections (students, payments,
// attendance) is announced so that derived views can be recomputed.
const (
	// Student events
	EventStudentSaved EventType = "student.saved"

	// Billing events
	EventPaymentRecorded EventType = "billing.payment_recorded"
	EventDebtCleared     EventType = "billing.debt_cleared"

	// Attendance events
	EventAttendanceTaken EventType = "attendance.taken"
	EventAbsenceAlert    EventType = "attendance.absence_alert"

	// Notification events
	EventReminderSent EventType = "notification.reminder_sent"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentSavedEvent is emitted when a student is created or updated by staff.
type StudentSavedEvent struct {
	BaseEvent
	Name    string `json:"name"`
	Active  bool   `json:"active"`
	Created bool   `json:"created"`
}

// Payload implements Event interface.
func (e StudentSavedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":    e.Name,
		"active":  e.Active,
		"created": e.Created,
	}
}

// NewStudentSavedEvent creates a new StudentSavedEvent.
func NewStudentSavedEvent(studentID, name string, active, created bool) StudentSavedEvent {
	return StudentSavedEvent{
		BaseEvent: NewBaseEvent(EventStudentSaved, studentID),
		Name:      name,
		Active:    active,
		Created:   created,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Billing Events
// ═══════════════════════════════════════════════════════════════════════════

// PaymentRecordedEvent is emitted when staff records a payment (cobro).
type PaymentRecordedEvent struct {
	BaseEvent
	PaymentID string    `json:"payment_id"`
	StudentID string    `json:"student_id"`
	Amount    string    `json:"amount"`
	Concept   string    `json:"concept"`
	Date      time.Time `json:"date"`
}

// Payload implements Event interface.
func (e PaymentRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"payment_id": e.PaymentID,
		"student_id": e.StudentID,
		"amount":     e.Amount,
		"concept":    e.Concept,
		"date":       e.Date.Format("2006-01-02"),
	}
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent.
// The aggregate is the student, so handlers can recompute that student's ledger.
func NewPaymentRecordedEvent(paymentID, studentID, amount, concept string, date time.Time) PaymentRecordedEvent {
	return PaymentRecordedEvent{
		BaseEvent: NewBaseEvent(EventPaymentRecorded, studentID),
		PaymentID: paymentID,
		StudentID: studentID,
		Amount:    amount,
		Concept:   concept,
		Date:      date,
	}
}

// DebtClearedEvent is emitted when a student's outstanding debt drops to zero.
type DebtClearedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	Year      int    `json:"year"`
}

// Payload implements Event interface.
func (e DebtClearedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"year":       e.Year,
	}
}

// NewDebtClearedEvent creates a new DebtClearedEvent.
func NewDebtClearedEvent(studentID string, year int) DebtClearedEvent {
	return DebtClearedEvent{
		BaseEvent: NewBaseEvent(EventDebtCleared, studentID),
		StudentID: studentID,
		Year:      year,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance Events
// ═══════════════════════════════════════════════════════════════════════════

// AttendanceTakenEvent is emitted after a roll call is stored.
type AttendanceTakenEvent struct {
	BaseEvent
	ClassID      string    `json:"class_id"`
	Date         time.Time `json:"date"`
	PresentCount int       `json:"present_count"`
}

// Payload implements Event interface.
func (e AttendanceTakenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class_id":      e.ClassID,
		"date":          e.Date.Format("2006-01-02"),
		"present_count": e.PresentCount,
	}
}

// NewAttendanceTakenEvent creates a new AttendanceTakenEvent.
func NewAttendanceTakenEvent(recordID, classID string, date time.Time, presentCount int) AttendanceTakenEvent {
	return AttendanceTakenEvent{
		BaseEvent:    NewBaseEvent(EventAttendanceTaken, recordID),
		ClassID:      classID,
		Date:         date,
		PresentCount: presentCount,
	}
}

// AbsenceAlertEvent is emitted when a student's consecutive-absence streak
// crosses the alert threshold.
type AbsenceAlertEvent struct {
	BaseEvent
	StudentID     string    `json:"student_id"`
	Streak        int       `json:"streak"`
	LastKnownDate time.Time `json:"last_known_date"`
}

// Payload implements Event interface.
func (e AbsenceAlertEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID,
		"streak":          e.Streak,
		"last_known_date": e.LastKnownDate.Format("2006-01-02"),
	}
}

// NewAbsenceAlertEvent creates a new AbsenceAlertEvent.
func NewAbsenceAlertEvent(studentID string, streak int, lastKnownDate time.Time) AbsenceAlertEvent {
	return AbsenceAlertEvent{
		BaseEvent:     NewBaseEvent(EventAbsenceAlert, studentID),
		StudentID:     studentID,
		Streak:        streak,
		LastKnownDate: lastKnownDate,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Events
// ═══════════════════════════════════════════════════════════════════════════

// ReminderSentEvent is emitted after a reminder was handed to a sender.
type ReminderSentEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	Kind      string `json:"kind"`
	Period    string `json:"period"`
}

// Payload implements Event interface.
func (e ReminderSentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"kind":       e.Kind,
		"period":     e.Period,
	}
}

// NewReminderSentEvent creates a new ReminderSentEvent.
func NewReminderSentEvent(studentID, kind, period string) ReminderSentEvent {
	return ReminderSentEvent{
		BaseEvent: NewBaseEvent(EventReminderSent, studentID),
		StudentID: studentID,
		Kind:      kind,
		Period:    period,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NoopPublisher drops every event. Useful for tests and one-off tools.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }
