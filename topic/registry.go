package topic

import (
	"context"
	"sync"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-consume/kafka"
	"github.com/hugolhafner/go-consume/logger"
)

type RegistryConfig struct {
	// PollTimeout bounds each Poll against the consumer in the dispatch
	// loop.
	PollTimeout time.Duration
	// IteratorTimeout is the per-Peek window after which an iterator
	// reports temporarily empty. Kept small relative to request timeouts
	// so a drain loop re-checks its deadline often enough.
	IteratorTimeout time.Duration
	// BufferSize is the per-topic record channel capacity.
	BufferSize int

	PollErrorBackoff backoff.Backoff
	Logger           logger.Logger
}

func defaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		PollTimeout:      250 * time.Millisecond,
		IteratorTimeout:  time.Millisecond,
		BufferSize:       1024,
		PollErrorBackoff: backoff.NewFixed(time.Second),
		Logger:           logger.NewNoopLogger(),
	}
}

type RegistryOption func(*RegistryConfig)

func WithPollTimeout(d time.Duration) RegistryOption {
	return func(cfg *RegistryConfig) {
		if d > 0 {
			cfg.PollTimeout = d
		}
	}
}

func WithIteratorTimeout(d time.Duration) RegistryOption {
	return func(cfg *RegistryConfig) {
		if d > 0 {
			cfg.IteratorTimeout = d
		}
	}
}

func WithBufferSize(n int) RegistryOption {
	return func(cfg *RegistryConfig) {
		if n > 0 {
			cfg.BufferSize = n
		}
	}
}

func WithPollErrorBackoff(b backoff.Backoff) RegistryOption {
	return func(cfg *RegistryConfig) {
		if b != nil {
			cfg.PollErrorBackoff = b
		}
	}
}

func WithLogger(l logger.Logger) RegistryOption {
	return func(cfg *RegistryConfig) {
		cfg.Logger = l.With("component", "topic-registry")
	}
}

// Registry creates topic handles on demand and routes records polled from
// the shared consumer into each handle's iterator. One dispatch goroutine
// runs once the first handle exists.
type Registry struct {
	consumer kafka.Consumer
	cfg      RegistryConfig
	log      logger.Logger

	mu      sync.Mutex
	handles map[string]*Handle
	known   map[string]struct{}
	started bool
	closed  bool

	// overflow holds records for topics whose handle buffer filled up.
	// Such topics are paused on the consumer until the stash drains.
	// Touched only by the dispatch goroutine.
	overflow map[string][]kafka.ConsumerRecord

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewRegistry(consumer kafka.Consumer, opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Registry{
		consumer: consumer,
		cfg:      cfg,
		log:      cfg.Logger,
		handles:  make(map[string]*Handle),
		known:    make(map[string]struct{}),
		overflow: make(map[string][]kafka.ConsumerRecord),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Lookup returns the handle for a topic, creating it on first use. The
// second return is false when the topic cannot be resolved; callers treat
// that as "read completes immediately with an empty result".
func (r *Registry) Lookup(ctx context.Context, topicName string) (*Handle, bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false
	}
	if h, ok := r.handles[topicName]; ok {
		r.mu.Unlock()
		return h, true
	}
	_, known := r.known[topicName]
	r.mu.Unlock()

	if !known && !r.refreshKnown(ctx, topicName) {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}
	if h, ok := r.handles[topicName]; ok {
		return h, true
	}

	if err := r.consumer.Subscribe(topicName); err != nil {
		r.log.Error("Failed to subscribe", "topic", topicName, "error", err)
		return nil, false
	}

	h := newHandle(topicName, r.cfg.BufferSize, r.cfg.IteratorTimeout)
	r.handles[topicName] = h

	if !r.started {
		r.started = true
		go r.run()
	}

	return h, true
}

// refreshKnown reloads topic metadata and reports whether topicName exists.
func (r *Registry) refreshKnown(ctx context.Context, topicName string) bool {
	topics, err := r.consumer.Topics(ctx)
	if err != nil {
		r.log.Error("Failed to fetch topic metadata", "error", err)
		return false
	}

	r.mu.Lock()
	for _, t := range topics {
		r.known[t] = struct{}{}
	}
	_, ok := r.known[topicName]
	r.mu.Unlock()

	return ok
}

// Offsets returns the last-consumed offset for every partition across all
// handles.
func (r *Registry) Offsets() map[kafka.TopicPartition]kafka.Offset {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	out := make(map[kafka.TopicPartition]kafka.Offset)
	for _, h := range handles {
		for partition, off := range h.Offsets() {
			out[kafka.TopicPartition{Topic: h.Topic(), Partition: partition}] = off
		}
	}
	return out
}

func (r *Registry) run() {
	defer close(r.doneCh)

	ctx := context.Background()
	failures := uint(0)

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		r.flushOverflow()

		records, err := r.consumer.Poll(ctx, r.cfg.PollTimeout)
		if err != nil {
			failures++
			r.log.Error("Poll failed", "error", err, "consecutive", failures)

			select {
			case <-r.stopCh:
				return
			case <-time.After(r.cfg.PollErrorBackoff.Next(failures)):
			}
			continue
		}
		failures = 0

		for _, rec := range records {
			r.route(rec)
		}
	}
}

// route hands a record to its topic's handle without ever blocking the
// dispatch loop. A full handle buffer parks the record in overflow and
// pauses fetches for that topic until a read drains it; other topics keep
// flowing.
func (r *Registry) route(rec kafka.ConsumerRecord) {
	r.mu.Lock()
	h := r.handles[rec.Topic]
	r.mu.Unlock()

	if h == nil {
		r.log.Warn("Dropping record for topic without a handle", "topic", rec.Topic, "offset", rec.Offset)
		return
	}

	if _, stalled := r.overflow[rec.Topic]; stalled {
		r.overflow[rec.Topic] = append(r.overflow[rec.Topic], rec)
		return
	}

	select {
	case h.records <- rec:
	default:
		r.overflow[rec.Topic] = []kafka.ConsumerRecord{rec}
		r.consumer.PauseTopics(rec.Topic)
		r.log.Warn("Topic buffer full, pausing fetches", "topic", rec.Topic, "offset", rec.Offset)
	}
}

// flushOverflow tries to move parked records into their handles and resumes
// fetching for any topic whose stash fully drained.
func (r *Registry) flushOverflow() {
	for topicName, pending := range r.overflow {
		r.mu.Lock()
		h := r.handles[topicName]
		r.mu.Unlock()

		if h == nil {
			delete(r.overflow, topicName)
			r.consumer.ResumeTopics(topicName)
			continue
		}

		for len(pending) > 0 {
			sent := false
			select {
			case h.records <- pending[0]:
				pending = pending[1:]
				sent = true
			default:
			}
			if !sent {
				break
			}
		}

		if len(pending) == 0 {
			delete(r.overflow, topicName)
			r.consumer.ResumeTopics(topicName)
			r.log.Debug("Topic buffer drained, resuming fetches", "topic", topicName)
			continue
		}
		r.overflow[topicName] = pending
	}
}

// Close stops the dispatch loop and closes the underlying consumer. Handles
// already held by in-flight reads stay usable until released; their
// iterators simply stop receiving new records.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)
	if started {
		<-r.doneCh
	}
	r.consumer.Close()

	return nil
}
