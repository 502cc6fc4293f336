// Package commit periodically flushes the offsets consumed by finished
// reads back to the log. Reads only update per-topic offset maps; nothing
// here affects what an in-flight read returns.
package commit

import (
	"context"

	"github.com/hugolhafner/go-consume/kafka"
)

// OffsetSource exposes last-consumed offsets per partition. Implemented by
// topic.Registry.
type OffsetSource interface {
	Offsets() map[kafka.TopicPartition]kafka.Offset
}

// Sink accepts commit positions. Implemented by kafka.Consumer.
type Sink interface {
	Commit(ctx context.Context, offsets map[kafka.TopicPartition]kafka.Offset) error
}

type Committer interface {
	Run(ctx context.Context) error
}
