//go:build unit

package consume_test

import (
	"context"
	"testing"
	"time"

	consume "github.com/hugolhafner/go-consume"
	"github.com/hugolhafner/go-consume/kafka"
	mockkafka "github.com/hugolhafner/go-consume/kafka/mock"
	"github.com/hugolhafner/go-consume/read"
	"github.com/hugolhafner/go-consume/translate"
	"github.com/stretchr/testify/require"
)

func startService(t *testing.T, consumer *mockkafka.Consumer, opts ...consume.ConfigOption) *consume.Service {
	t.Helper()

	base := []consume.ConfigOption{
		consume.WithReadConfig(
			read.Config{
				MaxRequestBytes: 1 << 20,
				RequestTimeout:  150 * time.Millisecond,
				IteratorBackoff: 10 * time.Millisecond,
			},
		),
		consume.WithCommitInterval(20 * time.Millisecond),
	}

	service, err := consume.NewService(consumer, append(base, opts...)...)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- service.Run(context.Background())
	}()

	// Wait for the background Run to win the running guard so tests can
	// rely on this being the active instance.
	require.Eventually(t, service.Running, 2*time.Second, time.Millisecond)

	t.Cleanup(func() {
		service.Close()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after Close")
		}
	})

	return service
}

func TestService_ReadAndCommit(t *testing.T) {
	consumer := mockkafka.NewConsumer()
	consumer.AddRecords("orders", 0, mockkafka.SizedRecord(30), mockkafka.SizedRecord(30))
	service := startService(t, consumer)

	task := service.Read(context.Background(), "orders", 60, translate.Binary(), nil)

	records, err := task.GetTimeout(2 * time.Second)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Commit position is one past the last consumed offset.
	require.Eventually(
		t, func() bool {
			committed, ok := consumer.CommittedOffsets()[kafka.TopicPartition{Topic: "orders", Partition: 0}]
			return ok && committed.Offset == 2
		}, 2*time.Second, 10*time.Millisecond,
	)
}

func TestService_RunTwiceFails(t *testing.T) {
	service := startService(t, mockkafka.NewConsumer())

	require.ErrorIs(t, service.Run(context.Background()), consume.ErrAlreadyRunning)
}

func TestService_RunAfterCloseFails(t *testing.T) {
	consumer := mockkafka.NewConsumer()
	service, err := consume.NewService(consumer)
	require.NoError(t, err)

	service.Close()
	require.ErrorIs(t, service.Run(context.Background()), consume.ErrClosed)
}

func TestService_CloseResolvesPendingReads(t *testing.T) {
	consumer := mockkafka.NewConsumer(mockkafka.WithTopics("orders"))
	service := startService(
		t, consumer,
		consume.WithReadConfig(
			read.Config{
				MaxRequestBytes: 1 << 20,
				RequestTimeout:  time.Minute,
				IteratorBackoff: 10 * time.Millisecond,
			},
		),
	)

	task := service.Read(context.Background(), "orders", 0, translate.Binary(), nil)
	require.False(t, task.IsDone())

	service.Close()

	records, err := task.GetTimeout(2 * time.Second)
	require.NoError(t, err)
	require.Empty(t, records)
}
