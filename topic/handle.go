// Package topic owns the per-topic consumption state: the buffered pull
// iterator fed by the shared consumer and the map of last-consumed offsets.
// A handle is held exclusively by one read at a time.
package topic

import (
	"sync"
	"time"

	"github.com/hugolhafner/go-consume/kafka"
)

type Handle struct {
	topic   string
	records chan kafka.ConsumerRecord
	iter    *Iterator

	// readMu serializes reads; held between StartRead and FinishRead.
	readMu sync.Mutex

	mu      sync.Mutex
	offsets map[int32]kafka.Offset
}

func newHandle(topic string, buffer int, window time.Duration) *Handle {
	ch := make(chan kafka.ConsumerRecord, buffer)
	return &Handle{
		topic:   topic,
		records: ch,
		iter:    &Iterator{ch: ch, window: window},
		offsets: make(map[int32]kafka.Offset),
	}
}

func (h *Handle) Topic() string {
	return h.topic
}

// StartRead blocks until the calling read has exclusive access to the
// iterator. It must be called by the goroutine that will drain.
func (h *Handle) StartRead() {
	h.readMu.Lock()
}

// TryStartRead acquires exclusive access only if the handle is free.
func (h *Handle) TryStartRead() bool {
	return h.readMu.TryLock()
}

func (h *Handle) FinishRead() {
	h.readMu.Unlock()
}

// Iterator is only valid between StartRead and FinishRead.
func (h *Handle) Iterator() *Iterator {
	return h.iter
}

// SetOffset records the last-consumed offset for a partition.
func (h *Handle) SetOffset(partition int32, off kafka.Offset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offsets[partition] = off
}

// Offsets returns a snapshot of last-consumed offsets per partition. The
// offset-commit subsystem reads this after a read finishes.
func (h *Handle) Offsets() map[int32]kafka.Offset {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[int32]kafka.Offset, len(h.offsets))
	for p, off := range h.offsets {
		out[p] = off
	}
	return out
}
