package kafka

import (
	"context"
	"time"
)

// Consumer is the consumer-side client surface the read layer is built on.
// Poll blocks for at most the given timeout and may return an empty slice
// when no data arrived within it. PauseTopics stops fetching the named
// topics until ResumeTopics is called; both are no-ops for unknown names.
type Consumer interface {
	Topics(ctx context.Context) ([]string, error)
	Subscribe(topics ...string) error
	Poll(ctx context.Context, timeout time.Duration) ([]ConsumerRecord, error)
	PauseTopics(topics ...string)
	ResumeTopics(topics ...string)
	Commit(ctx context.Context, offsets map[TopicPartition]Offset) error
	Close()
}
