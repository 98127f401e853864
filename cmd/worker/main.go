// Package main is the entry point of the background worker.
//
// The worker runs the scheduled jobs:
//   - monthly fee reminders to students with debt
//   - absence streak detection, alert events and check-in messages
//
// When events fan out over Redis it also runs the event handlers (debt
// cleared, absence alerts after a roll call) for the whole deployment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LitoFortuna/XDS-ERP-sub000/config"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/command"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/query"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/bootstrap"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/scheduler"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/scheduler/jobs"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := timeutil.SetLocation(cfg.App.Timezone); err != nil {
		return err
	}

	slogger := bootstrap.NewSlog(cfg).With("process", "worker")
	log := bootstrap.NewLogger(cfg)
	slogger.Info("starting studio worker",
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
	)

	if !cfg.Scheduler.Enabled {
		slogger.Warn("scheduler disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. BACKING SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.Open(ctx, cfg, slogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := infra.Close(); err != nil {
			slogger.Error("close backing services", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	dispatcher, err := bootstrap.NewDispatcher(infra, cfg, slogger)
	if err != nil {
		return fmt.Errorf("event handlers: %w", err)
	}
	defer func() { _ = dispatcher.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. JOBS
	// ─────────────────────────────────────────────────────────────────────────
	sender := command.NewSendRemindersHandler(bootstrap.SendRemindersDeps(cfg, infra, log))
	alerts := query.NewGetAbsenceAlertsHandler(infra.Repos.Students, infra.Repos.Records, query.LinkSettings{
		StudioName:         cfg.Billing.StudioName,
		DefaultCountryCode: cfg.Billing.DefaultCountryCode,
	}, nil)

	feeJob := jobs.NewFeeRemindersJob(sender, flag(cfg, config.FeatureFeeReminders), slogger)
	absenceJob := jobs.NewDetectAbsencesJob(jobs.DetectAbsencesDeps{
		Alerts:        alerts,
		Sender:        sender,
		Publisher:     infra.Bus,
		PublishAlerts: flag(cfg, config.FeatureAbsenceAlertEvents),
		SendReminders: flag(cfg, config.FeatureAbsenceReminders),
		Logger:        slogger,
	})

	feeSchedule, err := scheduler.ParseCronExpression(cfg.Scheduler.FeeRemindersCron)
	if err != nil {
		return fmt.Errorf("SCHEDULER_FEE_REMINDERS_CRON: %w", err)
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:            slogger,
		Timezone:          timeutil.Location(),
		Locker:            infra.Locker,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
	})
	sched.OnJobError(func(jobName string, err error) {
		slogger.Error("scheduled job failed", "job", jobName, "error", err)
	})

	if err := sched.Register(feeJob, feeSchedule); err != nil {
		return err
	}
	if err := sched.Register(absenceJob, scheduler.NewIntervalSchedule(cfg.Scheduler.DetectAbsencesInterval)); err != nil {
		return err
	}

	for _, info := range sched.ListJobs() {
		slogger.Info("job registered", "job", info.Name, "schedule", info.Schedule, "next_run", info.NextRun)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	slogger.Info("received shutdown signal", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		slogger.Error("stop scheduler", "error", err)
	}

	m := sched.GetMetrics().Snapshot()
	slogger.Info("shutdown completed",
		"executions", m.TotalExecutions,
		"failures", m.TotalFailures,
	)
	return nil
}

// flag reads a feature flag on every job run, so flags changed at runtime
// take effect without a restart.
func flag(cfg *config.Config, name string) jobs.Toggle {
	return func() bool { return cfg.Features.Enabled(name) }
}
