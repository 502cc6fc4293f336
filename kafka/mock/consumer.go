package mockkafka

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hugolhafner/go-consume/kafka"
)

var _ kafka.Consumer = (*Consumer)(nil)

// Consumer is an in-memory scripted implementation of kafka.Consumer.
// Records are queued per partition and handed out round-robin across
// subscribed topics, up to maxPollRecords per Poll call. When nothing is
// queued, Poll blocks for the full timeout like a real client would.
type Consumer struct {
	mu sync.Mutex

	topics         map[string]struct{}
	subscriptions  map[string]struct{}
	paused         map[string]struct{}
	recordQueues   map[kafka.TopicPartition][]kafka.ConsumerRecord
	queuePositions map[kafka.TopicPartition]int

	committedOffsets map[kafka.TopicPartition]kafka.Offset
	commitCalls      int

	maxPollRecords int
	pollErr        func() error
	topicsErr      error

	closed bool
}

func NewConsumer(opts ...Option) *Consumer {
	c := &Consumer{
		topics:           make(map[string]struct{}),
		subscriptions:    make(map[string]struct{}),
		paused:           make(map[string]struct{}),
		recordQueues:     make(map[kafka.TopicPartition][]kafka.ConsumerRecord),
		queuePositions:   make(map[kafka.TopicPartition]int),
		committedOffsets: make(map[kafka.TopicPartition]kafka.Offset),
		maxPollRecords:   10,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AddRecords queues records on a partition and makes the topic known.
// Offsets are assigned sequentially after any records already queued.
func (c *Consumer) AddRecords(topic string, partition int32, records ...kafka.ConsumerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.topics[topic] = struct{}{}
	tp := kafka.TopicPartition{Topic: topic, Partition: partition}

	next := int64(len(c.recordQueues[tp]))
	for _, rec := range records {
		rec.Topic = topic
		rec.Partition = partition
		rec.Offset = next
		next++
		c.recordQueues[tp] = append(c.recordQueues[tp], rec)
	}
}

func (c *Consumer) Topics(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.topicsErr != nil {
		return nil, c.topicsErr
	}

	names := make([]string, 0, len(c.topics))
	for name := range c.topics {
		names = append(names, name)
	}
	return names, nil
}

func (c *Consumer) Subscribe(topics ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range topics {
		c.subscriptions[t] = struct{}{}
	}
	return nil
}

func (c *Consumer) Poll(ctx context.Context, timeout time.Duration) ([]kafka.ConsumerRecord, error) {
	c.mu.Lock()

	if c.pollErr != nil {
		if err := c.pollErr(); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}

	records := c.takeLocked()
	c.mu.Unlock()

	if len(records) > 0 {
		return records, nil
	}

	// Nothing buffered: behave like a blocking poll that times out.
	select {
	case <-ctx.Done():
		return nil, nil
	case <-time.After(timeout):
	}

	c.mu.Lock()
	records = c.takeLocked()
	c.mu.Unlock()

	return records, nil
}

// takeLocked drains up to maxPollRecords round-robin across subscribed
// partitions. Caller must hold c.mu.
func (c *Consumer) takeLocked() []kafka.ConsumerRecord {
	var records []kafka.ConsumerRecord

	for len(records) < c.maxPollRecords {
		progress := false

		for tp, queue := range c.recordQueues {
			if _, ok := c.subscriptions[tp.Topic]; !ok {
				continue
			}
			if _, ok := c.paused[tp.Topic]; ok {
				continue
			}

			pos := c.queuePositions[tp]
			if pos >= len(queue) {
				continue
			}

			records = append(records, queue[pos])
			c.queuePositions[tp] = pos + 1
			progress = true

			if len(records) >= c.maxPollRecords {
				break
			}
		}

		if !progress {
			break
		}
	}

	return records
}

func (c *Consumer) PauseTopics(topics ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range topics {
		c.paused[t] = struct{}{}
	}
}

func (c *Consumer) ResumeTopics(topics ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range topics {
		delete(c.paused, t)
	}
}

// PausedTopics returns the topics currently paused, sorted for stable
// assertions.
func (c *Consumer) PausedTopics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.paused))
	for t := range c.paused {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (c *Consumer) Commit(_ context.Context, offsets map[kafka.TopicPartition]kafka.Offset) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commitCalls++
	for tp, off := range offsets {
		c.committedOffsets[tp] = off
	}
	return nil
}

func (c *Consumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Consumer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Consumer) CommittedOffsets() map[kafka.TopicPartition]kafka.Offset {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[kafka.TopicPartition]kafka.Offset, len(c.committedOffsets))
	for tp, off := range c.committedOffsets {
		out[tp] = off
	}
	return out
}
