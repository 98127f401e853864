// Package bootstrap opens the backing services shared by the API and the
// worker: storage, Redis and the event bus. Without DATABASE_URL the process
// runs on an in-memory store, and without Redis on in-process fallbacks.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LitoFortuna/XDS-ERP-sub000/config"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/billing"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/external/whatsapp"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/messaging"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/persistence/memory"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/persistence/postgres"
	redisstore "github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/persistence/redis"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/infrastructure/scheduler"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/circuitbreaker"
)

// Repositories groups the domain repositories.
type Repositories struct {
	Students student.Repository
	Payments billing.PaymentRepository
	Classes  attendance.ClassRepository
	Records  attendance.RecordRepository
}

// EventBus is the bus both processes publish to.
type EventBus interface {
	shared.EventBus
	SubscribeAll(handler shared.EventHandler) error
	Metrics() *messaging.EventBusMetrics
	Close() error
}

// ServiceCheck is a health check of one backing service.
type ServiceCheck struct {
	Name string
	// HoldsRecords is set for the store of students, payments and attendance.
	HoldsRecords bool
	Check        func(ctx context.Context) error
}

var errWhatsAppPaused = errors.New("circuit open, reminder sends are paused")

// Infra holds the opened services. Close releases them in reverse order.
type Infra struct {
	Repos       Repositories
	Bus         EventBus
	ReminderLog notification.ReminderLog
	Channel     notification.Channel

	// Locker is nil without Redis; a single worker needs no lock.
	Locker scheduler.Locker

	// Storage is where records live: "postgres" or "memory".
	Storage string

	// Services lists a health check per opened backing service.
	Services []ServiceCheck

	// DistributedEvents is true when events fan out over Redis, so each
	// event is handled by the worker only.
	DistributedEvents bool

	db      *postgres.Connection
	cache   *redisstore.Cache
	closers []func() error
}

// Open connects to everything the configuration asks for.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *Infra, err error) {
	infra := &Infra{}
	defer func() {
		if err != nil {
			_ = infra.Close()
		}
	}()

	if err := infra.openStorage(ctx, cfg, log); err != nil {
		return nil, err
	}
	if err := infra.openRedis(ctx, cfg, log); err != nil {
		return nil, err
	}
	if err := infra.openEventBus(cfg, log); err != nil {
		return nil, err
	}
	infra.openChannel(cfg, log)

	return infra, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Storage
// ─────────────────────────────────────────────────────────────────────────────

func (i *Infra) openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using the in-memory store; data is lost on exit")
		store := memory.NewStore()
		i.Storage = "memory"
		i.Repos = Repositories{
			Students: store.Students(),
			Payments: store.Payments(),
			Classes:  store.Classes(),
			Records:  store.Records(),
		}
		return nil
	}

	pgCfg := postgres.DefaultConfig(cfg.Database.URL)
	if cfg.Database.MaxOpenConns > 0 {
		pgCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		pgCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	}
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database")
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	i.db = conn
	i.closers = append(i.closers, func() error { conn.Close(); return nil })

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("database schema is up to date")
	}

	i.Repos = Repositories{
		Students: postgres.NewStudentRepository(conn),
		Payments: postgres.NewPaymentRepository(conn),
		Classes:  postgres.NewClassRepository(conn),
		Records:  postgres.NewRecordRepository(conn),
	}
	i.Storage = "postgres"
	i.Services = append(i.Services, ServiceCheck{Name: "postgres", HoldsRecords: true, Check: conn.Ping})
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis
// ─────────────────────────────────────────────────────────────────────────────

func (i *Infra) openRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Redis.Disabled {
		log.Warn("redis disabled, reminders are de-duplicated in memory only")
		i.ReminderLog = redisstore.NewMemoryReminderLog()
		return nil
	}

	redisCfg := redisstore.DefaultConfig()
	redisCfg.URL = cfg.Redis.URL
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
	redisCfg.KeyPrefix = cfg.Redis.KeyPrefix

	log.Info("connecting to redis", "addr", cfg.Redis.Address())
	cache, err := redisstore.NewCache(ctx, redisCfg)
	if err != nil {
		if cfg.IsProduction() {
			return err
		}
		log.Warn("redis unavailable, falling back to in-memory reminder log", "error", err)
		i.ReminderLog = redisstore.NewMemoryReminderLog()
		return nil
	}

	i.cache = cache
	i.closers = append(i.closers, cache.Close)
	i.ReminderLog = redisstore.NewReminderLog(cache)
	i.Locker = redisstore.NewJobLock(cache)
	i.Services = append(i.Services, ServiceCheck{Name: "redis", Check: cache.Ping})
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Event bus
// ─────────────────────────────────────────────────────────────────────────────

func (i *Infra) openEventBus(cfg *config.Config, log *slog.Logger) error {
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log

	if i.cache != nil && cfg.Features.Enabled(config.FeatureRedisEventBus) {
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisstore.NewPubSub(i.cache),
			LocalBusConfig: busCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("redis event bus: %w", err)
		}
		i.Bus = bus
		i.DistributedEvents = true
		i.closers = append(i.closers, bus.Close)
		log.Info("events fan out over redis pub/sub")
		return nil
	}

	bus := messaging.NewInMemoryEventBus(busCfg)
	i.Bus = bus
	i.closers = append(i.closers, bus.Close)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reminder channel
// ─────────────────────────────────────────────────────────────────────────────

func (i *Infra) openChannel(cfg *config.Config, log *slog.Logger) {
	cc := cfg.Billing.DefaultCountryCode
	if !cfg.WhatsApp.Enabled() {
		log.Info("whatsapp cloud api not configured, reminders are click-to-chat links")
		i.Channel = whatsapp.NewLinkChannel(cc, log)
		return
	}

	clientCfg := whatsapp.DefaultClientConfig(cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID)
	if cfg.WhatsApp.APIVersion != "" {
		clientCfg.APIVersion = cfg.WhatsApp.APIVersion
	}
	if cfg.WhatsApp.Timeout > 0 {
		clientCfg.Timeout = cfg.WhatsApp.Timeout
	}
	clientCfg.Logger = log
	clientCfg.Debug = cfg.App.Debug

	ch := whatsapp.NewCloudChannel(whatsapp.NewClient(clientCfg), cc, log)
	i.Channel = ch
	i.Services = append(i.Services, ServiceCheck{Name: "whatsapp", Check: breakerCheck(ch)})
}

// breakerCheck fails while the channel's circuit is open, that is while
// reminder sends are paused.
func breakerCheck(ch *whatsapp.CloudChannel) func(context.Context) error {
	return func(context.Context) error {
		if ch.BreakerState() == circuitbreaker.StateOpen {
			return errWhatsAppPaused
		}
		return nil
	}
}

// Metrics reports the database pool and event bus counters.
func (i *Infra) Metrics(ctx context.Context) map[string]interface{} {
	out := make(map[string]interface{})
	if i.db != nil {
		if status, err := i.db.Health(ctx); err == nil {
			out["postgres"] = status
		}
	}
	if m := i.Bus.Metrics(); m != nil {
		out["event_bus"] = m.Snapshot()
	}
	return out
}

// Close releases everything that was opened, last opened first.
func (i *Infra) Close() error {
	var errs []error
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}
