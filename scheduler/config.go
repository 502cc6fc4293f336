package scheduler

import (
	"github.com/hugolhafner/go-consume/clock"
	"github.com/hugolhafner/go-consume/errorhandler"
	"github.com/hugolhafner/go-consume/logger"
	"github.com/hugolhafner/go-consume/otel"
	"github.com/hugolhafner/go-consume/read"
)

type Config struct {
	// Workers is the number of goroutines stepping tasks.
	Workers int
	// QueueSize is the ready-queue capacity. Overflow is parked in the
	// delay queue and retried, so this bounds burst latency, not the
	// number of outstanding reads.
	QueueSize int

	ReadConfig   read.Config
	ErrorHandler errorhandler.Handler
	Clock        clock.Clock
	Logger       logger.Logger
	Telemetry    *otel.Telemetry
}

func defaultSchedulerConfig() Config {
	return Config{
		Workers:    4,
		QueueSize:  256,
		ReadConfig: read.DefaultConfig(),
		Clock:      clock.System(),
		Logger:     logger.NewNoopLogger(),
		Telemetry:  otel.NewNoopTelemetry(),
	}
}

type Option func(*Config)

func WithWorkers(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.Workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.QueueSize = n
		}
	}
}

func WithReadConfig(rc read.Config) Option {
	return func(cfg *Config) {
		cfg.ReadConfig = rc
	}
}

func WithClock(c clock.Clock) Option {
	return func(cfg *Config) {
		if c != nil {
			cfg.Clock = c
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = l.With("component", "scheduler")
	}
}

func WithErrorHandler(h errorhandler.Handler) Option {
	return func(cfg *Config) {
		cfg.ErrorHandler = h
	}
}

func WithTelemetry(t *otel.Telemetry) Option {
	return func(cfg *Config) {
		if t != nil {
			cfg.Telemetry = t
		}
	}
}
