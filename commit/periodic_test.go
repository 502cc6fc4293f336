//go:build unit

package commit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hugolhafner/go-consume/commit"
	"github.com/hugolhafner/go-consume/kafka"
	"github.com/hugolhafner/go-consume/logger"
	mocklogger "github.com/hugolhafner/go-consume/logger/mock"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	offsets map[kafka.TopicPartition]kafka.Offset
}

func (f *fakeSource) Offsets() map[kafka.TopicPartition]kafka.Offset {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[kafka.TopicPartition]kafka.Offset, len(f.offsets))
	for tp, off := range f.offsets {
		out[tp] = off
	}
	return out
}

func (f *fakeSource) set(tp kafka.TopicPartition, off kafka.Offset) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.offsets == nil {
		f.offsets = make(map[kafka.TopicPartition]kafka.Offset)
	}
	f.offsets[tp] = off
}

type fakeSink struct {
	mu    sync.Mutex
	calls []map[kafka.TopicPartition]kafka.Offset
	err   error
}

func (f *fakeSink) Commit(_ context.Context, offsets map[kafka.TopicPartition]kafka.Offset) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	call := make(map[kafka.TopicPartition]kafka.Offset, len(offsets))
	for tp, off := range offsets {
		call[tp] = off
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeSink) commits() []map[kafka.TopicPartition]kafka.Offset {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]map[kafka.TopicPartition]kafka.Offset(nil), f.calls...)
}

func (f *fakeSink) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func tp(topic string, partition int32) kafka.TopicPartition {
	return kafka.TopicPartition{Topic: topic, Partition: partition}
}

func TestPeriodicCommitter_FlushCommitsPositionAfterConsumed(t *testing.T) {
	source := &fakeSource{}
	source.set(tp("orders", 0), kafka.Offset{Offset: 4, LeaderEpoch: 1})

	sink := &fakeSink{}
	committer := commit.NewPeriodicCommitter(source, sink)

	committer.Flush(context.Background())

	calls := sink.commits()
	require.Len(t, calls, 1)
	require.Equal(t, kafka.Offset{Offset: 5, LeaderEpoch: 1}, calls[0][tp("orders", 0)])
}

func TestPeriodicCommitter_SkipsUnchangedOffsets(t *testing.T) {
	source := &fakeSource{}
	source.set(tp("orders", 0), kafka.Offset{Offset: 4})

	sink := &fakeSink{}
	committer := commit.NewPeriodicCommitter(source, sink)

	committer.Flush(context.Background())
	committer.Flush(context.Background())

	require.Len(t, sink.commits(), 1, "a flush with no progress commits nothing")

	source.set(tp("orders", 0), kafka.Offset{Offset: 9})
	committer.Flush(context.Background())

	calls := sink.commits()
	require.Len(t, calls, 2)
	require.Equal(t, kafka.Offset{Offset: 10}, calls[1][tp("orders", 0)])
}

func TestPeriodicCommitter_OnlyAdvancedPartitionsCommitted(t *testing.T) {
	source := &fakeSource{}
	source.set(tp("orders", 0), kafka.Offset{Offset: 4})
	source.set(tp("orders", 1), kafka.Offset{Offset: 7})

	sink := &fakeSink{}
	committer := commit.NewPeriodicCommitter(source, sink)
	committer.Flush(context.Background())

	source.set(tp("orders", 1), kafka.Offset{Offset: 8})
	committer.Flush(context.Background())

	calls := sink.commits()
	require.Len(t, calls, 2)
	require.NotContains(t, calls[1], tp("orders", 0))
	require.Equal(t, kafka.Offset{Offset: 9}, calls[1][tp("orders", 1)])
}

func TestPeriodicCommitter_CommitErrorRetriedNextFlush(t *testing.T) {
	source := &fakeSource{}
	source.set(tp("orders", 0), kafka.Offset{Offset: 4})

	sink := &fakeSink{}
	sink.fail(errors.New("broker unavailable"))

	log := mocklogger.New()
	committer := commit.NewPeriodicCommitter(source, sink, commit.WithLogger(log))

	committer.Flush(context.Background())
	require.Empty(t, sink.commits())
	log.AssertCalledWithLevel(t, logger.ErrorLevel)

	sink.fail(nil)
	committer.Flush(context.Background())

	calls := sink.commits()
	require.Len(t, calls, 1, "failed offsets are retried once the sink recovers")
	require.Equal(t, kafka.Offset{Offset: 5}, calls[0][tp("orders", 0)])
}

func TestPeriodicCommitter_RunFlushesOnCancel(t *testing.T) {
	source := &fakeSource{}
	source.set(tp("orders", 0), kafka.Offset{Offset: 2})

	sink := &fakeSink{}
	committer := commit.NewPeriodicCommitter(source, sink, commit.WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, committer.Run(ctx))
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	calls := sink.commits()
	require.Len(t, calls, 1, "final flush runs on shutdown")
	require.Equal(t, kafka.Offset{Offset: 3}, calls[0][tp("orders", 0)])
}
