package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/command"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT ABSENCES JOB
// ══════════════════════════════════════════════════════════════════════════════

// DetectAbsencesJob recomputes the absence alerts, announces each one on the
// event bus and, when enabled, sends the student a check-in message.
type DetectAbsencesJob struct {
	alerts         AlertSource
	sender         ReminderSender
	eventPublisher shared.EventPublisher
	publishAlerts  Toggle
	sendReminders  Toggle
	logger         *slog.Logger
	now            func() time.Time
	stats          lastRun
}

// DetectAbsencesDeps groups the job dependencies.
type DetectAbsencesDeps struct {
	Alerts    AlertSource
	Sender    ReminderSender
	Publisher shared.EventPublisher

	// PublishAlerts gates the attendance.absence_alert events.
	PublishAlerts Toggle

	// SendReminders gates the WhatsApp check-in messages.
	SendReminders Toggle

	Logger *slog.Logger
}

// NewDetectAbsencesJob creates the job.
func NewDetectAbsencesJob(deps DetectAbsencesDeps) *DetectAbsencesJob {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Publisher == nil {
		deps.Publisher = shared.NoopPublisher{}
	}
	return &DetectAbsencesJob{
		alerts:         deps.Alerts,
		sender:         deps.Sender,
		eventPublisher: deps.Publisher,
		publishAlerts:  deps.PublishAlerts,
		sendReminders:  deps.SendReminders,
		logger:         deps.Logger.With("job", "detect_absences"),
		now:            timeutil.Now,
	}
}

// Name implements scheduler.Job.
func (j *DetectAbsencesJob) Name() string { return "detect_absences" }

// Description implements scheduler.Job.
func (j *DetectAbsencesJob) Description() string {
	return "Flags students with more than three consecutive absences"
}

// Run implements scheduler.Job.
func (j *DetectAbsencesJob) Run(ctx context.Context) error {
	start := j.now()
	stats := RunStats{StartedAt: start}
	defer func() {
		stats.Duration = time.Since(start)
		j.stats.store(stats)
	}()

	alerts, err := j.alerts.Alerts(ctx)
	if err != nil {
		return fmt.Errorf("detect_absences: %w", err)
	}
	stats.Processed = len(alerts)

	if j.publishAlerts.on() {
		for _, a := range alerts {
			if err := j.eventPublisher.Publish(shared.NewAbsenceAlertEvent(a.StudentID, a.Streak, a.LastKnownDate)); err != nil {
				j.logger.Warn("failed to publish absence alert", "student_id", a.StudentID, "error", err)
			}
		}
	}

	j.logger.Info("absence alerts computed", "alerts", len(alerts))

	if len(alerts) == 0 || j.sender == nil || !j.sendReminders.on() {
		return nil
	}
	if !timeutil.IsSafeNotificationTime(start) {
		j.logger.Info("outside notification hours, reminders postponed")
		return nil
	}

	res, err := j.sender.Handle(ctx, command.SendRemindersCommand{
		Kind:          notification.KindAbsenceAlert,
		ReferenceDate: start,
	})
	if err != nil {
		return fmt.Errorf("detect_absences: send reminders: %w", err)
	}
	stats.Sent = res.Sent
	stats.Skipped = res.Skipped + res.NoPhone
	stats.Failed = res.Failed
	return nil
}

// LastRun returns the statistics of the last run.
func (j *DetectAbsencesJob) LastRun() RunStats {
	return j.stats.load()
}
