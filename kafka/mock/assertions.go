package mockkafka

import (
	"testing"

	"github.com/hugolhafner/go-consume/kafka"
	"github.com/stretchr/testify/require"
)

// AssertCommitted verifies the last committed offset for a partition.
func (c *Consumer) AssertCommitted(tb testing.TB, tp kafka.TopicPartition, offset int64) {
	tb.Helper()

	committed, ok := c.CommittedOffsets()[tp]
	require.True(tb, ok, "expected an offset to be committed for %s", tp)
	require.Equal(tb, offset, committed.Offset, "unexpected committed offset for %s", tp)
}

// AssertNothingCommitted verifies no commit reached the consumer.
func (c *Consumer) AssertNothingCommitted(tb testing.TB) {
	tb.Helper()

	c.mu.Lock()
	calls := c.commitCalls
	c.mu.Unlock()

	require.Zero(tb, calls, "expected no commit calls")
}

// AssertSubscribed verifies the consumer was subscribed to a topic.
func (c *Consumer) AssertSubscribed(tb testing.TB, topic string) {
	tb.Helper()

	c.mu.Lock()
	_, ok := c.subscriptions[topic]
	c.mu.Unlock()

	require.True(tb, ok, "expected subscription to topic %q", topic)
}
