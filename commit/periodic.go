package commit

import (
	"context"
	"time"

	"github.com/hugolhafner/go-consume/kafka"
	"github.com/hugolhafner/go-consume/logger"
)

var _ Committer = (*PeriodicCommitter)(nil)

type PeriodicCommitterConfig struct {
	Interval time.Duration
	Logger   logger.Logger
}

type PeriodicCommitterOption func(*PeriodicCommitterConfig)

func WithInterval(d time.Duration) PeriodicCommitterOption {
	return func(cfg *PeriodicCommitterConfig) {
		if d > 0 {
			cfg.Interval = d
		}
	}
}

func WithLogger(l logger.Logger) PeriodicCommitterOption {
	return func(cfg *PeriodicCommitterConfig) {
		cfg.Logger = l.With("component", "committer")
	}
}

// PeriodicCommitter snapshots last-consumed offsets on an interval and
// commits the position after them. Unchanged snapshots are skipped.
type PeriodicCommitter struct {
	source OffsetSource
	sink   Sink
	cfg    PeriodicCommitterConfig
	log    logger.Logger

	lastCommitted map[kafka.TopicPartition]kafka.Offset
}

func NewPeriodicCommitter(source OffsetSource, sink Sink, opts ...PeriodicCommitterOption) *PeriodicCommitter {
	cfg := PeriodicCommitterConfig{
		Interval: 5 * time.Second,
		Logger:   logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &PeriodicCommitter{
		source:        source,
		sink:          sink,
		cfg:           cfg,
		log:           cfg.Logger,
		lastCommitted: make(map[kafka.TopicPartition]kafka.Offset),
	}
}

// Run flushes on every interval tick until ctx is cancelled, then makes a
// final best-effort flush so offsets from the last reads are not lost.
func (p *PeriodicCommitter) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), p.cfg.Interval)
			p.Flush(flushCtx)
			cancel()
			return nil
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush commits every partition whose consumed offset advanced since the
// previous flush. Errors are logged and retried on the next tick.
func (p *PeriodicCommitter) Flush(ctx context.Context) {
	consumed := p.source.Offsets()

	toCommit := make(map[kafka.TopicPartition]kafka.Offset)
	for tp, off := range consumed {
		position := kafka.Offset{
			// Commit the position after the last consumed record.
			Offset:      off.Offset + 1,
			LeaderEpoch: off.LeaderEpoch,
		}

		if prev, ok := p.lastCommitted[tp]; ok && prev.Offset >= position.Offset {
			continue
		}
		toCommit[tp] = position
	}

	if len(toCommit) == 0 {
		return
	}

	if err := p.sink.Commit(ctx, toCommit); err != nil {
		p.log.Error("Failed to commit offsets", "error", err, "partitions", len(toCommit))
		return
	}

	for tp, off := range toCommit {
		p.lastCommitted[tp] = off
	}

	p.log.Debug("Committed offsets", "partitions", len(toCommit))
}
