// Package consume bridges a pull-based Kafka consumer to bounded
// request/response reads. A Service owns the consumer, routes records into
// per-topic handles, schedules read tasks against byte and time budgets,
// and periodically commits the offsets that finished reads advanced.
package consume

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hugolhafner/go-consume/clock"
	"github.com/hugolhafner/go-consume/commit"
	"github.com/hugolhafner/go-consume/errorhandler"
	"github.com/hugolhafner/go-consume/kafka"
	"github.com/hugolhafner/go-consume/logger"
	"github.com/hugolhafner/go-consume/otel"
	"github.com/hugolhafner/go-consume/read"
	"github.com/hugolhafner/go-consume/scheduler"
	"github.com/hugolhafner/go-consume/topic"
	"github.com/hugolhafner/go-consume/translate"
)

const Version = "v0.1.0" // x-release-please-version

var (
	ErrAlreadyRunning = errors.New("service is already running")
	ErrClosed         = errors.New("service is closed")
)

type Config struct {
	Logger         logger.Logger
	ReadConfig     read.Config
	ErrorHandler   errorhandler.Handler
	Workers        int
	CommitInterval time.Duration
	Clock          clock.Clock
	Telemetry      *otel.Telemetry
}

type ConfigOption func(*Config)

func WithLogger(logger logger.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithReadConfig(cfg read.Config) ConfigOption {
	return func(c *Config) {
		c.ReadConfig = cfg
	}
}

func WithWorkers(n int) ConfigOption {
	return func(c *Config) {
		if n > 0 {
			c.Workers = n
		}
	}
}

func WithCommitInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		if d > 0 {
			c.CommitInterval = d
		}
	}
}

// WithErrorHandler sets the policy for records that fail translation. See
// the errorhandler package; the default fails the read with its partial
// results.
func WithErrorHandler(h errorhandler.Handler) ConfigOption {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

func WithClock(clk clock.Clock) ConfigOption {
	return func(c *Config) {
		c.Clock = clk
	}
}

func WithTelemetry(tel *otel.Telemetry) ConfigOption {
	return func(c *Config) {
		c.Telemetry = tel
	}
}

func defaultConfig() Config {
	return Config{
		Logger:         logger.NewNoopLogger(),
		ReadConfig:     read.DefaultConfig(),
		Workers:        4,
		CommitInterval: 5 * time.Second,
		Clock:          clock.System(),
		Telemetry:      otel.NewNoopTelemetry(),
	}
}

// Service composes the pieces of the read path behind one Run loop. Reads
// can be submitted as soon as the service is constructed; they make
// progress once Run is started.
type Service struct {
	consumer  kafka.Consumer
	registry  *topic.Registry
	scheduler *scheduler.Scheduler
	committer *commit.PeriodicCommitter
	logger    logger.Logger

	mu        sync.Mutex
	running   bool
	closeOnce sync.Once
	closedCh  chan struct{}
}

func NewService(consumer kafka.Consumer, opts ...ConfigOption) (*Service, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return NewServiceWithConfig(consumer, config)
}

func NewServiceWithConfig(consumer kafka.Consumer, config Config) (*Service, error) {
	registry := topic.NewRegistry(
		consumer,
		topic.WithLogger(config.Logger),
	)

	sched := scheduler.New(
		registry,
		scheduler.WithWorkers(config.Workers),
		scheduler.WithReadConfig(config.ReadConfig),
		scheduler.WithErrorHandler(config.ErrorHandler),
		scheduler.WithClock(config.Clock),
		scheduler.WithLogger(config.Logger),
		scheduler.WithTelemetry(config.Telemetry),
	)

	committer := commit.NewPeriodicCommitter(
		registry,
		consumer,
		commit.WithInterval(config.CommitInterval),
		commit.WithLogger(config.Logger),
	)

	return &Service{
		consumer:  consumer,
		registry:  registry,
		scheduler: sched,
		committer: committer,
		logger:    config.Logger,
		closedCh:  make(chan struct{}),
	}, nil
}

// Read submits a bounded read against a topic and returns the task as a
// future handle on its result. sink may be nil when Get is the only way
// the caller consumes the result.
func (s *Service) Read(
	ctx context.Context, topicName string, maxBytes int64, translator translate.Translator, sink read.Sink,
) *read.Task {
	return s.scheduler.Submit(ctx, topicName, maxBytes, translator, sink)
}

// Run drives the scheduler and the offset committer until ctx is
// cancelled or Close is called. Pending reads resolve with their partial
// results before Run returns, and a final offset flush runs last.
func (s *Service) Run(ctx context.Context) error {
	if err := s.startRunning(); err != nil {
		return err
	}
	defer s.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closedCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- s.scheduler.Run(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- s.committer.Run(runCtx)
	}()

	wg.Wait()
	close(errCh)

	if err := s.registry.Close(); err != nil {
		s.logger.Error("Failed to close topic registry", "error", err)
	}

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// Close stops a running service. Safe to call more than once and before
// Run.
func (s *Service) Close() {
	s.closeOnce.Do(
		func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			s.running = false
			close(s.closedCh)
		},
	)
}

// Running reports whether a Run call is currently active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) startRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	select {
	case <-s.closedCh:
		return ErrClosed
	default:
	}

	s.running = true
	return nil
}
