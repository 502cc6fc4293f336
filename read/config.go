package read

import (
	"time"

	"github.com/hugolhafner/go-consume/clock"
	"github.com/hugolhafner/go-consume/errorhandler"
	"github.com/hugolhafner/go-consume/logger"
)

// Config carries the three timing/budget values every read task needs.
type Config struct {
	// MaxRequestBytes is the global ceiling on a single read's byte
	// budget. A caller-requested budget is clamped to this.
	MaxRequestBytes int64
	// RequestTimeout is the wall-clock deadline for one read, anchored
	// at task creation.
	RequestTimeout time.Duration
	// IteratorBackoff is how long a scheduler should wait before
	// re-stepping a task whose iterator was temporarily empty.
	IteratorBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRequestBytes: 64 * 1024 * 1024,
		RequestTimeout:  time.Second,
		IteratorBackoff: 50 * time.Millisecond,
	}
}

type taskOptions struct {
	cfg        Config
	clock      clock.Clock
	log        logger.Logger
	errHandler errorhandler.Handler
}

func defaultTaskOptions() taskOptions {
	return taskOptions{
		cfg:   DefaultConfig(),
		clock: clock.System(),
		log:   logger.NewNoopLogger(),
	}
}

type TaskOption func(*taskOptions)

func WithConfig(cfg Config) TaskOption {
	return func(o *taskOptions) {
		if cfg.MaxRequestBytes > 0 {
			o.cfg.MaxRequestBytes = cfg.MaxRequestBytes
		}
		if cfg.RequestTimeout > 0 {
			o.cfg.RequestTimeout = cfg.RequestTimeout
		}
		if cfg.IteratorBackoff > 0 {
			o.cfg.IteratorBackoff = cfg.IteratorBackoff
		}
	}
}

func WithClock(c clock.Clock) TaskOption {
	return func(o *taskOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l logger.Logger) TaskOption {
	return func(o *taskOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithErrorHandler overrides what happens when a record cannot be
// translated. Without a handler the read fails with its partial results.
func WithErrorHandler(h errorhandler.Handler) TaskOption {
	return func(o *taskOptions) {
		o.errHandler = h
	}
}
