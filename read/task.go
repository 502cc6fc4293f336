// Package read implements the partial-read engine. A Task bridges one
// client read request to a blocking topic iterator by draining it in short
// bounded steps, enforcing an approximate byte budget and a wall-clock
// deadline, and exposing the eventual result through a future-style handle.
package read

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hugolhafner/go-consume/clock"
	"github.com/hugolhafner/go-consume/errorhandler"
	"github.com/hugolhafner/go-consume/kafka"
	"github.com/hugolhafner/go-consume/logger"
	"github.com/hugolhafner/go-consume/topic"
	"github.com/hugolhafner/go-consume/translate"
)

// ErrWaitTimeout is returned by GetTimeout when the wait expires before
// the task completes. The task itself keeps running.
var ErrWaitTimeout = errors.New("read: wait timed out before completion")

// Sink receives the final record sequence exactly once, synchronously,
// from the goroutine that detected completion.
type Sink func(records []translate.ClientRecord)

// Task tracks the progress of a single read request. Step must only be
// driven by one goroutine at a time; the future accessors (IsDone, Get and
// friends) are safe from any goroutine.
type Task struct {
	topicName  string
	translator translate.Translator
	sink       Sink

	// ctx is the submit context; error handlers see it so their backoff
	// waits abort when the caller is gone.
	ctx context.Context

	cfg        Config
	clk        clock.Clock
	log        logger.Logger
	errHandler errorhandler.Handler

	handle   *topic.Handle
	iter     *topic.Iterator
	acquired bool
	attempt  int

	maxResponseBytes int64
	bytesConsumed    int64
	records          []translate.ClientRecord
	startedAt        time.Time
	nextEligibleAt   time.Time

	failed bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewTask creates a read task bound to a topic. The effective byte budget
// is the minimum of maxBytes and the configured ceiling; maxBytes <= 0
// means "ceiling only". If the topic cannot be resolved the task completes
// immediately with an empty result, before any step runs.
func NewTask(
	ctx context.Context,
	registry *topic.Registry,
	topicName string,
	maxBytes int64,
	translator translate.Translator,
	sink Sink,
	opts ...TaskOption,
) *Task {
	o := defaultTaskOptions()
	for _, opt := range opts {
		opt(&o)
	}

	t := &Task{
		topicName:  topicName,
		translator: translator,
		sink:       sink,
		ctx:        ctx,
		cfg:        o.cfg,
		clk:        o.clock,
		log:        o.log.With("topic", topicName),
		errHandler: o.errHandler,
		done:       make(chan struct{}),
	}

	t.maxResponseBytes = o.cfg.MaxRequestBytes
	if maxBytes > 0 && maxBytes < t.maxResponseBytes {
		t.maxResponseBytes = maxBytes
	}
	t.startedAt = t.clk.Now()

	handle, ok := registry.Lookup(ctx, topicName)
	if !ok {
		t.log.Warn("Topic could not be resolved, completing read empty")
		t.complete()
		return t
	}
	t.handle = handle

	return t
}

// Step performs one bounded iteration of the read. It acquires the topic
// handle on the first call, drains records until the budget is hit or the
// iterator reports temporarily empty, and decides whether the task is
// finished. Failures never propagate: any unexpected error or panic
// finishes the task with the records accumulated so far, and the scheduler
// only ever observes Done.
func (t *Task) Step() (res StepResult) {
	if t.IsDone() {
		return stepDone()
	}

	defer func() {
		if r := recover(); r != nil {
			t.log.Error("Unexpected panic in read step", "panic", r)
			t.failed = true
			t.Finish()
			res = stepDone()
		}
	}()

	// Acquisition happens here rather than at construction because the
	// goroutine taking the read lock must be the one draining. The
	// acquisition never blocks: a busy handle backs the task off so the
	// worker stays free to step the holder.
	if !t.acquired {
		if !t.handle.TryStartRead() {
			now := t.clk.Now()
			requestExpiration := t.startedAt.Add(t.cfg.RequestTimeout)
			if now.Sub(t.startedAt) >= t.cfg.RequestTimeout {
				t.Finish()
				return stepDone()
			}
			t.nextEligibleAt = minTime(now.Add(t.cfg.IteratorBackoff), requestExpiration)
			return stepBackoff(t.nextEligibleAt)
		}
		t.acquired = true
		t.iter = t.handle.Iterator()
	}

	backoff := false
	iterationStart := t.clk.Now()

	// Drain as much as the budget allows. The iterator's poll window is
	// small relative to the request timeout, so checking elapsed time
	// once after the loop is enough.
	for {
		rec, ok := t.iter.Peek()
		if !ok {
			backoff = true
			break
		}

		clientRec, size, err := t.translator.Translate(rec)
		if err != nil {
			switch t.translateError(rec, err) {
			case errorhandler.ActionTypeSkip:
				// A skipped record still counts as consumed for commits.
				t.iter.Advance()
				t.handle.SetOffset(rec.Partition, kafka.Offset{Offset: rec.Offset, LeaderEpoch: rec.LeaderEpoch})
				t.attempt = 0
				continue
			case errorhandler.ActionTypeRetry:
				continue
			default:
				t.log.Error(
					"Failed to translate record, finishing read",
					"partition", rec.Partition, "offset", rec.Offset, "error", err,
				)
				t.failed = true
				t.Finish()
				return stepDone()
			}
		}
		t.attempt = 0

		if t.bytesConsumed+size > t.maxResponseBytes {
			// Over budget: the record stays peeked for the next read.
			break
		}

		t.iter.Advance()
		t.records = append(t.records, clientRec)
		t.bytesConsumed += size
		t.handle.SetOffset(rec.Partition, kafka.Offset{Offset: rec.Offset, LeaderEpoch: rec.LeaderEpoch})
	}

	now := t.clk.Now()
	elapsed := now.Sub(t.startedAt)

	// Backoff is computed from the iteration's own start so timing
	// reasoning stays deterministic however long the drain took. The
	// request expiration is anchored at task creation, so repeated
	// backoffs cannot stretch the client-visible deadline.
	backoffExpiration := iterationStart.Add(t.cfg.IteratorBackoff)
	requestExpiration := t.startedAt.Add(t.cfg.RequestTimeout)
	t.nextEligibleAt = minTime(backoffExpiration, requestExpiration)

	if elapsed >= t.cfg.RequestTimeout || t.bytesConsumed >= t.maxResponseBytes {
		t.Finish()
		return stepDone()
	}

	if backoff {
		return stepBackoff(t.nextEligibleAt)
	}
	return stepContinue()
}

// translateError consults the configured handler for a failed translation.
// Without a handler the read fails.
func (t *Task) translateError(rec kafka.ConsumerRecord, err error) errorhandler.ActionType {
	if t.errHandler == nil {
		return errorhandler.ActionTypeFail
	}

	t.attempt++
	action := t.errHandler.Handle(
		t.ctx,
		errorhandler.ErrorContext{Record: rec, Error: err, Attempt: t.attempt},
	)
	return action.Type()
}

// Finish completes the task with whatever records were accumulated and
// releases the topic handle. Idempotent. Normally invoked by Step's own
// terminal logic; schedulers use it to resolve still-pending tasks during
// shutdown.
func (t *Task) Finish() {
	t.release()
	t.complete()
}

func (t *Task) release() {
	if t.acquired {
		t.acquired = false
		t.handle.FinishRead()
	}
}

func (t *Task) complete() {
	t.doneOnce.Do(func() {
		// The gate closes before the sink runs so a sink panic cannot
		// strand blocked Get callers.
		close(t.done)
		if t.sink != nil {
			t.sink(t.records)
		}
	})
}

// IsDone reports whether the task has completed. Non-blocking, safe from
// any goroutine.
func (t *Task) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Get blocks until the task completes and returns the final records. All
// callers observe the same result.
func (t *Task) Get() []translate.ClientRecord {
	<-t.done
	return t.records
}

// GetContext is Get bounded by a context.
func (t *Task) GetContext(ctx context.Context) ([]translate.ClientRecord, error) {
	select {
	case <-t.done:
		return t.records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetTimeout is Get bounded by a duration. On expiry it returns
// ErrWaitTimeout; the task is unaffected and keeps running.
func (t *Task) GetTimeout(d time.Duration) ([]translate.ClientRecord, error) {
	select {
	case <-t.done:
		return t.records, nil
	case <-time.After(d):
		return nil, ErrWaitTimeout
	}
}

// Cancel is unsupported: a read cannot be torn down mid-drain without
// corrupting the shared topic handle, so it always reports false. The task
// stops only via its own deadline and budget logic.
func (t *Task) Cancel() bool {
	return false
}

func (t *Task) Topic() string {
	return t.topicName
}

// StartedAt is the task's creation time, the anchor for its deadline.
func (t *Task) StartedAt() time.Time {
	return t.startedAt
}

// Failed reports whether the task terminated on an unexpected failure
// rather than its own deadline or budget logic. Stable once the task is
// done.
func (t *Task) Failed() bool {
	return t.failed
}

// NextEligibleAt is the time after which the scheduler may step the task
// again. Only meaningful between steps on the driving goroutine.
func (t *Task) NextEligibleAt() time.Time {
	return t.nextEligibleAt
}

// BytesConsumed is the running approximate byte total. Stable once the
// task is done.
func (t *Task) BytesConsumed() int64 {
	return t.bytesConsumed
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
