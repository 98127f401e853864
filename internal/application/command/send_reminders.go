package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/logger"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND REMINDERS COMMAND
// Sends the fee reminders of the billing overview, or the absence reminders
// of the alert list, at most once per student, kind and month.
// ══════════════════════════════════════════════════════════════════════════════

// SendRemindersCommand selects which reminders to send.
type SendRemindersCommand struct {
	Kind notification.Kind `json:"kind"`

	// ReferenceDate defaults to today in the studio timezone.
	ReferenceDate time.Time `json:"reference_date"`

	// DryRun builds the reminders without sending or marking them.
	DryRun bool `json:"dry_run"`
}

// Delivery statuses.
const (
	DeliverySent    = "sent"
	DeliverySkipped = "already_sent"
	DeliveryNoPhone = "no_phone"
	DeliveryFailed  = "failed"
	DeliveryPreview = "preview"
)

// Delivery is the outcome for one student.
type Delivery struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Link      string `json:"link,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SendRemindersResult summarizes one run.
type SendRemindersResult struct {
	Kind       notification.Kind `json:"kind"`
	Period     string            `json:"period"`
	Sent       int               `json:"sent"`
	Skipped    int               `json:"skipped"`
	NoPhone    int               `json:"no_phone"`
	Failed     int               `json:"failed"`
	Deliveries []Delivery        `json:"deliveries"`
}

// ReminderSettings configures the reminder texts and de-duplication.
type ReminderSettings struct {
	StudioName         string
	DefaultCountryCode string

	// TTL is how long a sent reminder is remembered. It must outlive the
	// month so a reminder is never sent twice in the same period.
	TTL time.Duration
}

// DefaultReminderSettings returns the production defaults.
func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		StudioName:         "XDS",
		DefaultCountryCode: "34",
		TTL:                40 * 24 * time.Hour,
	}
}

// SendRemindersHandler handles SendRemindersCommand.
type SendRemindersHandler struct {
	studentRepo    student.Repository
	paymentRepo    billing.PaymentRepository
	recordRepo     attendance.RecordRepository
	channel        notification.Channel
	reminderLog    notification.ReminderLog
	eventPublisher shared.EventPublisher
	settings       ReminderSettings
	log            *logger.Logger
}

// SendRemindersDeps groups the handler dependencies.
type SendRemindersDeps struct {
	Students    student.Repository
	Payments    billing.PaymentRepository
	Records     attendance.RecordRepository
	Channel     notification.Channel
	ReminderLog notification.ReminderLog
	Publisher   shared.EventPublisher
	Settings    ReminderSettings
	Logger      *logger.Logger
}

// NewSendRemindersHandler creates the handler.
func NewSendRemindersHandler(deps SendRemindersDeps) *SendRemindersHandler {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	if deps.Publisher == nil {
		deps.Publisher = shared.NoopPublisher{}
	}
	if deps.Settings.TTL <= 0 {
		deps.Settings.TTL = DefaultReminderSettings().TTL
	}
	return &SendRemindersHandler{
		studentRepo:    deps.Students,
		paymentRepo:    deps.Payments,
		recordRepo:     deps.Records,
		channel:        deps.Channel,
		reminderLog:    deps.ReminderLog,
		eventPublisher: deps.Publisher,
		settings:       deps.Settings,
		log:            deps.Logger.With(logger.Component("send_reminders")),
	}
}

// candidate is a student that should get a reminder; reminder is nil when the
// student has no phone.
type candidate struct {
	studentID string
	name      string
	reminder  *notification.Reminder
}

// Handle executes the command.
func (h *SendRemindersHandler) Handle(ctx context.Context, cmd SendRemindersCommand) (*SendRemindersResult, error) {
	if !cmd.Kind.IsValid() {
		return nil, shared.NewDomainError("notification", "SendReminders", shared.ErrInvalidInput, "unknown reminder kind "+string(cmd.Kind))
	}

	ref := timeutil.Today()
	if !cmd.ReferenceDate.IsZero() {
		ref = timeutil.StartOfDay(cmd.ReferenceDate)
	}

	var (
		candidates []candidate
		err        error
	)
	switch cmd.Kind {
	case notification.KindFeeReminder:
		candidates, err = h.feeCandidates(ctx, ref)
	case notification.KindAbsenceAlert:
		candidates, err = h.absenceCandidates(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	result := &SendRemindersResult{
		Kind:       cmd.Kind,
		Period:     shared.YearMonthOf(ref).String(),
		Deliveries: make([]Delivery, 0, len(candidates)),
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		d := h.deliver(ctx, c, cmd.DryRun)
		switch d.Status {
		case DeliverySent:
			result.Sent++
		case DeliverySkipped:
			result.Skipped++
		case DeliveryNoPhone:
			result.NoPhone++
		case DeliveryFailed:
			result.Failed++
		}
		result.Deliveries = append(result.Deliveries, d)
	}

	h.log.Info("reminders processed",
		logger.String("kind", string(cmd.Kind)),
		logger.String("period", result.Period),
		logger.Int("sent", result.Sent),
		logger.Int("skipped", result.Skipped),
		logger.Int("no_phone", result.NoPhone),
		logger.Int("failed", result.Failed),
		logger.Bool("dry_run", cmd.DryRun),
	)
	return result, nil
}

func (h *SendRemindersHandler) feeCandidates(ctx context.Context, ref time.Time) ([]candidate, error) {
	students, err := h.studentRepo.List(ctx, student.DefaultListOptions())
	if err != nil {
		return nil, fmt.Errorf("send_reminders: list students: %w", err)
	}
	payments, err := h.paymentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("send_reminders: list payments: %w", err)
	}

	ov := billing.BuildOverview(students, payments, ref)
	out := make([]candidate, 0, len(ov.Debtors))
	for _, d := range ov.Debtors {
		c := candidate{studentID: d.StudentID, name: d.Name}
		if r, err := notification.NewFeeReminder(d, h.settings.StudioName, ref); err == nil {
			c.reminder = r
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *SendRemindersHandler) absenceCandidates(ctx context.Context, ref time.Time) ([]candidate, error) {
	students, err := h.studentRepo.List(ctx, student.DefaultListOptions())
	if err != nil {
		return nil, fmt.Errorf("send_reminders: list students: %w", err)
	}
	records, err := h.recordRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("send_reminders: list records: %w", err)
	}

	alerts := attendance.AbsenceAlerts(students, records)
	out := make([]candidate, 0, len(alerts))
	for _, a := range alerts {
		c := candidate{studentID: a.StudentID, name: a.Name}
		if r, err := notification.NewAbsenceReminder(a, h.settings.StudioName, ref); err == nil {
			c.reminder = r
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *SendRemindersHandler) deliver(ctx context.Context, c candidate, dryRun bool) Delivery {
	d := Delivery{StudentID: c.studentID, Name: c.name}
	if c.reminder == nil {
		d.Status = DeliveryNoPhone
		return d
	}
	d.Link = c.reminder.Link(h.settings.DefaultCountryCode)

	if dryRun {
		d.Status = DeliveryPreview
		return d
	}

	key := c.reminder.DedupeKey()
	fresh, err := h.reminderLog.MarkSent(ctx, key, h.settings.TTL)
	if err != nil {
		d.Status = DeliveryFailed
		d.Error = fmt.Sprintf("reminder log: %v", err)
		h.log.Error("reminder log unavailable", logger.StudentID(c.studentID), logger.Err(err))
		return d
	}
	if !fresh {
		d.Status = DeliverySkipped
		return d
	}

	res := h.channel.Send(ctx, c.reminder)
	if !res.Success {
		d.Status = DeliveryFailed
		if res.Error != nil {
			d.Error = res.Error.Error()
		}
		// Forget the key so the next run retries, unless the number can never
		// receive messages.
		if !errors.Is(res.Error, notification.ErrUnsupportedRecipient) {
			if err := h.reminderLog.Forget(ctx, key); err != nil {
				h.log.Warn("failed to forget reminder key", logger.String("key", key), logger.Err(err))
			}
		}
		h.log.Warn("reminder delivery failed",
			logger.StudentID(c.studentID),
			logger.Phone(string(c.reminder.Phone)),
			logger.String("channel", string(h.channel.Type())),
			logger.Bool("retryable", res.Retryable),
			logger.Err(res.Error),
		)
		return d
	}

	d.Status = DeliverySent
	d.MessageID = res.MessageID
	if res.Link != "" {
		d.Link = res.Link
	}

	event := shared.NewReminderSentEvent(c.studentID, string(c.reminder.Kind), c.reminder.Period.String())
	if err := h.eventPublisher.Publish(event); err != nil {
		h.log.Warn("failed to publish reminder event", logger.StudentID(c.studentID), logger.Err(err))
	}
	return d
}
