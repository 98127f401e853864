package bootstrap

import (
	"log/slog"

	"github.com/LitoFortuna/XDS-ERP-sub000/config"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/command"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/application/eventhandler"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/messaging"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/logger"
)

// NewDispatcher registers the application event handlers on the bus and
// starts dispatching. Outcome events are only logged.
func NewDispatcher(infra *Infra, cfg *config.Config, log *slog.Logger) (*messaging.Dispatcher, error) {
	dcfg := messaging.DefaultDispatcherConfig(infra.Bus)
	dcfg.Logger = log
	d := messaging.NewDispatcher(dcfg)
	d.Use(messaging.RecoveryMiddleware(log))
	d.Use(messaging.LoggingMiddleware(log))

	onPayment := eventhandler.NewOnPaymentRecordedHandler(
		infra.Repos.Students, infra.Repos.Payments, infra.Bus, log,
	)
	onAttendance := eventhandler.NewOnAttendanceTakenHandler(
		infra.Repos.Students, infra.Repos.Records, infra.Bus, log,
		func() bool { return cfg.Features.Enabled(config.FeatureAbsenceAlertEvents) },
	)

	if err := d.Register(onPayment.EventType(), "debt_cleared", onPayment.Handle); err != nil {
		return nil, err
	}
	if err := d.Register(onAttendance.EventType(), "absence_alerts", onAttendance.Handle); err != nil {
		return nil, err
	}

	logOutcome := func(event shared.Event) error {
		log.Info("domain event",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"payload", event.Payload(),
		)
		return nil
	}
	for _, t := range []shared.EventType{shared.EventDebtCleared, shared.EventAbsenceAlert, shared.EventReminderSent} {
		if err := d.Register(t, "log_"+string(t), logOutcome); err != nil {
			return nil, err
		}
	}

	if err := d.Start(); err != nil {
		return nil, err
	}
	return d, nil
}

// SendRemindersDeps wires the reminder command to the opened services.
func SendRemindersDeps(cfg *config.Config, infra *Infra, log *logger.Logger) command.SendRemindersDeps {
	return command.SendRemindersDeps{
		Students:    infra.Repos.Students,
		Payments:    infra.Repos.Payments,
		Records:     infra.Repos.Records,
		Channel:     infra.Channel,
		ReminderLog: infra.ReminderLog,
		Publisher:   infra.Bus,
		Settings: command.ReminderSettings{
			StudioName:         cfg.Billing.StudioName,
			DefaultCountryCode: cfg.Billing.DefaultCountryCode,
			TTL:                cfg.Billing.ReminderTTL,
		},
		Logger: log,
	}
}
