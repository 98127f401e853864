// Package jobs contains the scheduled jobs of the worker.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/command"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
)

// ReminderSender sends a batch of reminders. Implemented by
// command.SendRemindersHandler.
type ReminderSender interface {
	Handle(ctx context.Context, cmd command.SendRemindersCommand) (*command.SendRemindersResult, error)
}

// AlertSource computes the current absence alerts. Implemented by
// query.GetAbsenceAlertsHandler.
type AlertSource interface {
	Alerts(ctx context.Context) ([]attendance.AbsenceAlert, error)
}

// Toggle reports whether a feature is on. It is evaluated on every run so
// flags can change without restarting the worker.
type Toggle func() bool

func (t Toggle) on() bool {
	return t == nil || t()
}

// RunStats is what the last run of a job did.
type RunStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Processed int
	Sent      int
	Skipped   int
	Failed    int
	Disabled  bool
}

type lastRun struct {
	v atomic.Value // RunStats
}

func (l *lastRun) store(s RunStats) { l.v.Store(s) }

func (l *lastRun) load() RunStats {
	s, _ := l.v.Load().(RunStats)
	return s
}
