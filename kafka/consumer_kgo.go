package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/go-consume/logger"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

var _ Consumer = (*KgoConsumer)(nil)

type KgoConsumerConfig struct {
	BootstrapServers  []string
	GroupID           string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration

	Logger logger.Logger
}

func defaultConfig() KgoConsumerConfig {
	return KgoConsumerConfig{
		BootstrapServers:  []string{"localhost:9092"},
		GroupID:           "default-group",
		SessionTimeout:    45 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		Logger:            logger.NewNoopLogger(),
	}
}

type KgoOption func(*KgoConsumerConfig)

func WithBootstrapServers(servers []string) KgoOption {
	return func(cfg *KgoConsumerConfig) {
		cfg.BootstrapServers = servers
	}
}

func WithGroupID(id string) KgoOption {
	return func(cfg *KgoConsumerConfig) {
		cfg.GroupID = id
	}
}

func WithSessionTimeout(d time.Duration) KgoOption {
	return func(cfg *KgoConsumerConfig) {
		cfg.SessionTimeout = d
	}
}

func WithLogger(l logger.Logger) KgoOption {
	return func(cfg *KgoConsumerConfig) {
		cfg.Logger = l.With("client", "kgo")
	}
}

// KgoConsumer adapts a franz-go client to the Consumer interface. Offsets
// are committed explicitly by the offset-commit subsystem, so auto-commit
// is disabled.
type KgoConsumer struct {
	client *kgo.Client
	config KgoConsumerConfig

	mu     sync.Mutex
	topics []string

	logger logger.Logger
}

func NewKgoConsumer(opts ...KgoOption) (*KgoConsumer, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	kc := &KgoConsumer{config: cfg, logger: cfg.Logger}

	kgoOpts := []kgo.Opt{
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.WithLogger(newKgoLogger(kc.logger)),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.HeartbeatInterval(cfg.HeartbeatInterval),
		kgo.DisableAutoCommit(),
	}

	client, err := kgo.NewClient(kgoOpts...)
	if err != nil {
		return nil, fmt.Errorf("create kgo client: %w", err)
	}

	kc.client = client

	return kc, nil
}

func (k *KgoConsumer) Topics(ctx context.Context) ([]string, error) {
	req := kmsg.NewPtrMetadataRequest()

	resp, err := req.RequestWith(ctx, k.client)
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}

	names := make([]string, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		if t.Topic == nil || t.IsInternal {
			continue
		}
		names = append(names, *t.Topic)
	}

	return names, nil
}

func (k *KgoConsumer) Subscribe(topics ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.client.AddConsumeTopics(topics...)
	k.topics = append(k.topics, topics...)

	return nil
}

func (k *KgoConsumer) Poll(ctx context.Context, timeout time.Duration) ([]ConsumerRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetches := k.client.PollFetches(ctx)
	if errs := fetches.Errors(); len(errs) > 0 {
		for _, err := range errs {
			if !errors.Is(err.Err, context.DeadlineExceeded) && !errors.Is(err.Err, context.Canceled) {
				return nil, fmt.Errorf("poll: %w", err.Err)
			}
		}
	}

	return convertRecords(fetches.Records()), nil
}

func (k *KgoConsumer) PauseTopics(topics ...string) {
	k.client.PauseFetchTopics(topics...)
}

func (k *KgoConsumer) ResumeTopics(topics ...string) {
	k.client.ResumeFetchTopics(topics...)
}

func (k *KgoConsumer) Commit(ctx context.Context, offsets map[TopicPartition]Offset) error {
	if len(offsets) == 0 {
		return nil
	}

	toCommit := make(map[string]map[int32]kgo.EpochOffset)
	for tp, offset := range offsets {
		if _, ok := toCommit[tp.Topic]; !ok {
			toCommit[tp.Topic] = make(map[int32]kgo.EpochOffset)
		}

		toCommit[tp.Topic][tp.Partition] = kgo.EpochOffset{
			Offset: offset.Offset,
			Epoch:  offset.LeaderEpoch,
		}
	}

	onDoneCh := make(chan error, 1)
	onDone := func(_ *kgo.Client, _ *kmsg.OffsetCommitRequest, _ *kmsg.OffsetCommitResponse, err error) {
		onDoneCh <- err
	}

	k.client.CommitOffsets(ctx, toCommit, onDone)
	if err := <-onDoneCh; err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}

	return nil
}

func (k *KgoConsumer) Close() {
	k.client.Close()
}

func convertRecords(records []*kgo.Record) []ConsumerRecord {
	converted := make([]ConsumerRecord, len(records))
	for i, r := range records {
		converted[i] = ConsumerRecord{
			Topic:       r.Topic,
			Partition:   r.Partition,
			Offset:      r.Offset,
			Key:         r.Key,
			Value:       r.Value,
			Headers:     convertFromKgoHeaders(r.Headers),
			LeaderEpoch: r.LeaderEpoch,
			Timestamp:   r.Timestamp,
		}
	}

	return converted
}

func convertFromKgoHeaders(headers []kgo.RecordHeader) []Header {
	converted := make([]Header, len(headers))
	for i, h := range headers {
		converted[i] = Header{Key: h.Key, Value: h.Value}
	}

	return converted
}
