package topic

import (
	"time"

	"github.com/hugolhafner/go-consume/kafka"
)

// Iterator is a peek/advance cursor over a topic's record stream. Peek
// waits at most the configured window for a record, so callers are never
// blocked unboundedly; a peeked record stays at the front until Advance,
// including across reads.
//
// An Iterator is not safe for concurrent use; exclusivity comes from the
// owning Handle's read lock.
type Iterator struct {
	ch     chan kafka.ConsumerRecord
	window time.Duration
	peeked *kafka.ConsumerRecord
}

// Peek returns the next record without consuming it. The second return is
// false when no record arrived within the poll window (temporarily empty).
func (it *Iterator) Peek() (kafka.ConsumerRecord, bool) {
	if it.peeked != nil {
		return *it.peeked, true
	}

	select {
	case rec := <-it.ch:
		it.peeked = &rec
		return rec, true
	case <-time.After(it.window):
		return kafka.ConsumerRecord{}, false
	}
}

// Advance consumes the peeked record. It must only be called after a
// successful Peek.
func (it *Iterator) Advance() kafka.ConsumerRecord {
	if it.peeked == nil {
		panic("topic: Advance called without a successful Peek")
	}

	rec := *it.peeked
	it.peeked = nil
	return rec
}
