package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/command"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEE REMINDERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// FeeRemindersJob sends one reminder to every student with outstanding fees
// and a phone number. It runs monthly; re-runs in the same month only reach
// students that were not reminded yet.
type FeeRemindersJob struct {
	sender  ReminderSender
	enabled Toggle
	logger  *slog.Logger
	now     func() time.Time
	stats   lastRun
}

// NewFeeRemindersJob creates the job.
func NewFeeRemindersJob(sender ReminderSender, enabled Toggle, logger *slog.Logger) *FeeRemindersJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeeRemindersJob{
		sender:  sender,
		enabled: enabled,
		logger:  logger.With("job", "fee_reminders"),
		now:     timeutil.Now,
	}
}

// Name implements scheduler.Job.
func (j *FeeRemindersJob) Name() string { return "fee_reminders" }

// Description implements scheduler.Job.
func (j *FeeRemindersJob) Description() string {
	return "Sends monthly fee reminders to students with outstanding debt"
}

// Run implements scheduler.Job.
func (j *FeeRemindersJob) Run(ctx context.Context) error {
	start := j.now()
	stats := RunStats{StartedAt: start}
	defer func() {
		stats.Duration = time.Since(start)
		j.stats.store(stats)
	}()

	if !j.enabled.on() {
		stats.Disabled = true
		j.logger.Info("fee reminders disabled, skipping")
		return nil
	}
	if !timeutil.IsSafeNotificationTime(start) {
		j.logger.Info("outside notification hours, skipping", "now", start.Format(time.RFC3339))
		return nil
	}

	res, err := j.sender.Handle(ctx, command.SendRemindersCommand{
		Kind:          notification.KindFeeReminder,
		ReferenceDate: start,
	})
	if err != nil {
		return fmt.Errorf("fee_reminders: %w", err)
	}

	stats.Processed = len(res.Deliveries)
	stats.Sent = res.Sent
	stats.Skipped = res.Skipped + res.NoPhone
	stats.Failed = res.Failed

	j.logger.Info("fee reminders done",
		"period", res.Period,
		"debtors", stats.Processed,
		"sent", res.Sent,
		"already_sent", res.Skipped,
		"no_phone", res.NoPhone,
		"failed", res.Failed,
	)
	return nil
}

// LastRun returns the statistics of the last run.
func (j *FeeRemindersJob) LastRun() RunStats {
	return j.stats.load()
}
