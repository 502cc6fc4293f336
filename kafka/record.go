package kafka

import (
	"strconv"
	"time"
)

// Header represents a single Kafka record header
// kafka needs to support multiple headers with duplicate keys
type Header struct {
	Key   string
	Value []byte
}

type ConsumerRecord struct {
	Key         []byte
	Value       []byte
	Headers     []Header
	Topic       string
	Partition   int32
	Offset      int64
	LeaderEpoch int32
	Timestamp   time.Time
}

func (r ConsumerRecord) TopicPartition() TopicPartition {
	return TopicPartition{
		Topic:     r.Topic,
		Partition: r.Partition,
	}
}

type TopicPartition struct {
	Topic     string
	Partition int32
}

func (tp TopicPartition) String() string {
	return tp.Topic + "-" + strconv.FormatInt(int64(tp.Partition), 10)
}

type Offset struct {
	LeaderEpoch int32
	Offset      int64
}
