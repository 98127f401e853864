package bootstrap

import (
	"log/slog"
	"os"

	"github.com/LitoFortuna/XDS-ERP-sub000/config"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/logger"
)

// NewSlog builds the slog logger used by infrastructure components and makes
// it the default.
func NewSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg)}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("app", cfg.App.Name, "version", cfg.App.Version)
	slog.SetDefault(log)
	return log
}

// NewLogger builds the structured logger used by commands and the HTTP layer.
func NewLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		AddCaller: cfg.App.Debug,
	}).With(logger.String("app", cfg.App.Name))
}

func slogLevel(cfg *config.Config) slog.Level {
	if cfg.App.Debug {
		return slog.LevelDebug
	}
	switch logger.ParseLevel(cfg.Observability.LogLevel) {
	case logger.LevelDebug:
		return slog.LevelDebug
	case logger.LevelWarn:
		return slog.LevelWarn
	case logger.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
