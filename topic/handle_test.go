//go:build unit

package topic_test

import (
	"context"
	"testing"
	"time"

	"github.com/hugolhafner/go-consume/kafka"
	mockkafka "github.com/hugolhafner/go-consume/kafka/mock"
	"github.com/hugolhafner/go-consume/topic"
	"github.com/stretchr/testify/require"
)

func tp(topicName string, partition int32) kafka.TopicPartition {
	return kafka.TopicPartition{Topic: topicName, Partition: partition}
}

func offsetAt(offset int64) kafka.Offset {
	return kafka.Offset{Offset: offset}
}

func lookupHandle(t *testing.T, registry *topic.Registry, topicName string) *topic.Handle {
	t.Helper()

	handle, ok := registry.Lookup(context.Background(), topicName)
	require.True(t, ok)
	return handle
}

func TestHandle_ExclusiveRead(t *testing.T) {
	registry := newRegistry(t, mockkafka.NewConsumer(mockkafka.WithTopics("orders")))
	handle := lookupHandle(t, registry, "orders")

	handle.StartRead()
	require.False(t, handle.TryStartRead(), "read lock must be exclusive")

	handle.FinishRead()
	require.True(t, handle.TryStartRead())
	handle.FinishRead()
}

func TestHandle_OffsetsSnapshot(t *testing.T) {
	registry := newRegistry(t, mockkafka.NewConsumer(mockkafka.WithTopics("orders")))
	handle := lookupHandle(t, registry, "orders")

	handle.SetOffset(0, offsetAt(10))
	snapshot := handle.Offsets()

	handle.SetOffset(0, offsetAt(11))
	require.EqualValues(t, 10, snapshot[0].Offset, "snapshot must not alias live state")
	require.EqualValues(t, 11, handle.Offsets()[0].Offset)
}

func TestIterator_PeekTimesOutWhenEmpty(t *testing.T) {
	registry := newRegistry(t, mockkafka.NewConsumer(mockkafka.WithTopics("orders")))
	handle := lookupHandle(t, registry, "orders")

	handle.StartRead()
	defer handle.FinishRead()

	start := time.Now()
	_, ok := handle.Iterator().Peek()
	elapsed := time.Since(start)

	require.False(t, ok)
	require.Less(t, elapsed, time.Second, "Peek must not block unboundedly")
}

func TestIterator_PeekStableUntilAdvance(t *testing.T) {
	consumer := mockkafka.NewConsumer()
	consumer.AddRecords("orders", 0, mockkafka.Record("k0", "v0"), mockkafka.Record("k1", "v1"))
	registry := newRegistry(t, consumer)
	handle := lookupHandle(t, registry, "orders")

	handle.StartRead()
	defer handle.FinishRead()
	iter := handle.Iterator()

	first, ok := iter.Peek()
	require.True(t, ok)
	again, ok := iter.Peek()
	require.True(t, ok)
	require.Equal(t, first, again)

	require.Equal(t, first, iter.Advance())

	next, ok := iter.Peek()
	require.True(t, ok)
	require.NotEqual(t, first.Offset, next.Offset)
}

func TestIterator_AdvanceWithoutPeekPanics(t *testing.T) {
	registry := newRegistry(t, mockkafka.NewConsumer(mockkafka.WithTopics("orders")))
	handle := lookupHandle(t, registry, "orders")

	handle.StartRead()
	defer handle.FinishRead()

	require.Panics(t, func() {
		handle.Iterator().Advance()
	})
}
