// Package scheduler drives read tasks to completion on a fixed worker
// pool. A task lives in exactly one place at a time: the ready queue, the
// delay queue, or the hands of a worker. That ownership discipline is what
// guarantees no two goroutines ever step the same task concurrently.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/hugolhafner/go-consume/read"
	"github.com/hugolhafner/go-consume/topic"
	"github.com/hugolhafner/go-consume/translate"
)

type Scheduler struct {
	registry *topic.Registry
	cfg      Config

	readyCh chan *read.Task

	mu      sync.Mutex
	delayed delayHeap
	wake    chan struct{}
}

func New(registry *topic.Registry, opts ...Option) *Scheduler {
	cfg := defaultSchedulerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Scheduler{
		registry: registry,
		cfg:      cfg,
		readyCh:  make(chan *read.Task, cfg.QueueSize),
		wake:     make(chan struct{}, 1),
	}
}

// Submit creates a read task and queues it for stepping. The returned task
// is the caller's future handle on the result. A task whose topic cannot
// be resolved is already done on return.
func (s *Scheduler) Submit(
	ctx context.Context, topicName string, maxBytes int64, translator translate.Translator, sink read.Sink,
) *read.Task {
	t := read.NewTask(
		ctx, s.registry, topicName, maxBytes, translator, sink,
		read.WithConfig(s.cfg.ReadConfig),
		read.WithClock(s.cfg.Clock),
		read.WithLogger(s.cfg.Logger),
		read.WithErrorHandler(s.cfg.ErrorHandler),
	)

	s.cfg.Telemetry.ReadsActive.Add(ctx, 1)

	if t.IsDone() {
		s.observeDone(ctx, t)
		return t
	}

	s.enqueue(t)
	return t
}

// Run blocks stepping tasks until ctx is cancelled, then resolves every
// still-pending task with its partial results so no future is left
// hanging.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.dispatchDue(ctx)
	}()

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}

	wg.Wait()
	s.drain()

	return nil
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	log := s.cfg.Logger.With("worker", id)
	log.Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("Worker stopping")
			return
		case t := <-s.readyCh:
			s.stepTask(ctx, t)
		}
	}
}

func (s *Scheduler) stepTask(ctx context.Context, t *read.Task) {
	res := t.Step()

	switch res.Kind {
	case read.Done:
		s.observeDone(ctx, t)
	case read.Continue:
		if ctx.Err() != nil {
			t.Finish()
			s.observeDone(ctx, t)
			return
		}
		s.enqueue(t)
	case read.Backoff:
		s.delay(t, res.ResumeAt)
	}
}

// enqueue makes a task ready. When the ready queue is full the task is
// parked in the delay queue with an immediate resume time instead of
// blocking a worker.
func (s *Scheduler) enqueue(t *read.Task) {
	select {
	case s.readyCh <- t:
	default:
		s.delay(t, s.cfg.Clock.Now())
	}
}

func (s *Scheduler) delay(t *read.Task, at time.Time) {
	s.mu.Lock()
	heap.Push(&s.delayed, &delayedTask{task: t, at: at})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatchDue moves tasks whose resume time has passed from the delay
// queue onto the ready queue.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	const idleWait = time.Second

	for {
		now := s.cfg.Clock.Now()

		var due []*read.Task
		s.mu.Lock()
		for len(s.delayed) > 0 && !s.delayed[0].at.After(now) {
			item := heap.Pop(&s.delayed).(*delayedTask)
			due = append(due, item.task)
		}
		wait := idleWait
		if len(s.delayed) > 0 {
			wait = s.delayed[0].at.Sub(now)
		}
		s.mu.Unlock()

		for i, t := range due {
			select {
			case s.readyCh <- t:
			case <-ctx.Done():
				// Park the rest again so drain can resolve them.
				for _, rest := range due[i:] {
					s.delay(rest, now)
				}
				return
			}
		}

		if wait <= 0 {
			wait = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-time.After(wait):
		}
	}
}

// drain resolves every queued task after the workers have stopped. No
// concurrent Step can be running at this point, so Finish is safe.
func (s *Scheduler) drain() {
	finished := 0

	for {
		select {
		case t := <-s.readyCh:
			t.Finish()
			s.observeDone(context.Background(), t)
			finished++
			continue
		default:
		}
		break
	}

	s.mu.Lock()
	delayed := s.delayed
	s.delayed = nil
	s.mu.Unlock()

	for _, item := range delayed {
		item.task.Finish()
		s.observeDone(context.Background(), item.task)
		finished++
	}

	if finished > 0 {
		s.cfg.Logger.Info("Resolved pending reads with partial results on shutdown", "count", finished)
	}
}

func (s *Scheduler) observeDone(ctx context.Context, t *read.Task) {
	records := t.Get()

	tel := s.cfg.Telemetry
	tel.ReadsActive.Add(ctx, -1)
	tel.RecordsReturned.Add(ctx, int64(len(records)))
	tel.BytesReturned.Add(ctx, t.BytesConsumed())
	tel.ReadDuration.Record(ctx, s.cfg.Clock.Now().Sub(t.StartedAt()).Seconds())
	if t.Failed() {
		tel.StepFailures.Add(ctx, 1)
	}
}
