//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	shutdownWait = 10 * time.Second
	readWait     = 30 * time.Second
	eventualWait = 15 * time.Second
)

var (
	testContainer  *redpanda.Container
	bootstrapAddr  string
	containerOnce  sync.Once
	containerError error
)

func TestMain(m *testing.M) {
	code := m.Run()

	if testContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = testContainer.Terminate(ctx)
	}

	os.Exit(code)
}

func ensureContainer(t *testing.T) string {
	t.Helper()

	containerOnce.Do(
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			container, err := redpanda.Run(
				ctx,
				"docker.redpanda.com/redpandadata/redpanda:v24.2.1",
				redpanda.WithAutoCreateTopics(),
			)
			if err != nil {
				containerError = fmt.Errorf("failed to start redpanda container: %w", err)
				return
			}

			testContainer = container

			addr, err := container.KafkaSeedBroker(ctx)
			if err != nil {
				containerError = fmt.Errorf("failed to get kafka seed broker: %w", err)
				return
			}

			bootstrapAddr = addr
		},
	)

	require.NoError(t, containerError, "container initialization failed")
	require.NotEmpty(t, bootstrapAddr, "bootstrap address not set")

	return bootstrapAddr
}

func testTopicName(t *testing.T, suffix string) string {
	return fmt.Sprintf("e2e-test-%s-%d", suffix, time.Now().UnixNano())
}

func testGroupID(t *testing.T, suffix string) string {
	return testTopicName(t, suffix+"-group")
}

func createTopics(t *testing.T, broker string, numPartitions int32, topics ...string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := kgo.NewClient(kgo.SeedBrokers(broker))
	require.NoError(t, err)
	defer client.Close()

	admin := kadm.NewClient(client)

	resp, err := admin.CreateTopics(ctx, numPartitions, 1, nil, topics...)
	require.NoError(t, err)

	for _, topic := range topics {
		topicResp, ok := resp[topic]
		require.True(t, ok, "topic %s not in response", topic)

		if topicResp.Err != nil && topicResp.Err.Error() != "TOPIC_ALREADY_EXISTS" {
			require.NoError(t, topicResp.Err, "failed to create topic %s", topic)
		}
	}

	t.Cleanup(
		func() {
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cleanupCancel()

			cleanupClient, err := kgo.NewClient(kgo.SeedBrokers(broker))
			if err != nil {
				return
			}
			defer cleanupClient.Close()

			cleanupAdmin := kadm.NewClient(cleanupClient)
			_, _ = cleanupAdmin.DeleteTopics(cleanupCtx, topics...)
		},
	)
}

func produceOrderedRecords(t *testing.T, broker, topic string, records []kgo.Record) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := kgo.NewClient(kgo.SeedBrokers(broker))
	require.NoError(t, err)
	defer client.Close()

	for i := range records {
		records[i].Topic = topic
		results := client.ProduceSync(ctx, &records[i])
		require.NoError(t, results.FirstErr(), "failed to produce record %d", i)
	}
}

func waitForShutdown(t *testing.T, errCh <-chan error, timeout time.Duration) {
	t.Helper()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for service shutdown")
	}
}

func eventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}

		<-ticker.C
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", timeout, msg)
		}
	}
}

func getCommittedOffsets(t *testing.T, broker, groupID string) map[string]map[int32]int64 {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := kgo.NewClient(kgo.SeedBrokers(broker))
	require.NoError(t, err)
	defer client.Close()

	admin := kadm.NewClient(client)

	offsets, err := admin.FetchOffsets(ctx, groupID)
	if err != nil {
		return nil
	}

	result := make(map[string]map[int32]int64)
	offsets.Each(
		func(o kadm.OffsetResponse) {
			if _, ok := result[o.Topic]; !ok {
				result[o.Topic] = make(map[int32]int64)
			}
			result[o.Topic][o.Partition] = o.Offset.At
		},
	)

	return result
}
