// Package main is the entry point of the studio ERP HTTP API.
//
// The API serves the fee ledgers, the billing dashboard, the quarter split,
// absence alerts and the weekly schedule, and takes the staff writes
// (students, payments, roll calls, reminder runs).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/config"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/command"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/query"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/bootstrap"
	httpapi "github.com/LitoFortuna/XDS-ERP-sub000/internal/interface/http"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/interface/http/handlers"
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

	slogger := bootstrap.NewSlog(cfg)
	log := bootstrap.NewLogger(cfg)
	slogger.Info("starting studio API",
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
	)

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
	// With the Redis bus the worker handles events; otherwise they only
	// exist in this process.
	// ─────────────────────────────────────────────────────────────────────────
	if !infra.DistributedEvents {
		dispatcher, err := bootstrap.NewDispatcher(infra, cfg, slogger)
		if err != nil {
			return fmt.Errorf("event handlers: %w", err)
		}
		defer func() { _ = dispatcher.Stop() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	repos := infra.Repos
	links := query.LinkSettings{
		StudioName:         cfg.Billing.StudioName,
		DefaultCountryCode: cfg.Billing.DefaultCountryCode,
	}

	health := handlers.NewStudioHealth(cfg.App.Version, infra.Storage)
	for _, svc := range infra.Services {
		health.Watch(handlers.Service{Name: svc.Name, Critical: svc.HoldsRecords, Check: svc.Check})
	}

	deps := httpapi.Dependencies{
		GetFeeLedger:       query.NewGetFeeLedgerHandler(repos.Students, repos.Payments, nil),
		GetBillingOverview: query.NewGetBillingOverviewHandler(repos.Students, repos.Payments, links, nil),
		GetQuarterSplit:    query.NewGetQuarterSplitHandler(repos.Payments),
		GetAbsenceAlerts:   query.NewGetAbsenceAlertsHandler(repos.Students, repos.Records, links, nil),
		GetStudentStreak:   query.NewGetStudentStreakHandler(repos.Students, repos.Records),
		GetWeeklySchedule:  query.NewGetWeeklyScheduleHandler(repos.Classes, repos.Students),

		RecordPayment:  command.NewRecordPaymentHandler(repos.Students, repos.Payments, infra.Bus, log),
		TakeAttendance: command.NewTakeAttendanceHandler(repos.Classes, repos.Records, infra.Bus, log),
		SaveStudent:    command.NewSaveStudentHandler(repos.Students, infra.Bus, log),
		SendReminders:  command.NewSendRemindersHandler(bootstrap.SendRemindersDeps(cfg, infra, log)),

		Features:      cfg.Features,
		Logger:        log,
		HealthChecker: health,
		Metrics: func() map[string]interface{} {
			mctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return infra.Metrics(mctx)
		},
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.StaffKeyHashes = cfg.HTTP.StaffKeyHashes

	server, err := httpapi.NewServer(httpCfg, deps)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slogger.Error("http shutdown", slog.Any("error", err))
	}

	slogger.Info("shutdown completed")
	return nil
}
