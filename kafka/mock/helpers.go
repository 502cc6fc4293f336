package mockkafka

import (
	"time"

	"github.com/hugolhafner/go-consume/kafka"
)

// Record builds a consumer record with string key and value. Topic,
// partition and offset are filled in by AddRecords.
func Record(key, value string) kafka.ConsumerRecord {
	return kafka.ConsumerRecord{
		Key:       []byte(key),
		Value:     []byte(value),
		Timestamp: time.Now(),
	}
}

// SizedRecord builds a record whose value is exactly n bytes, useful for
// byte-budget tests.
func SizedRecord(n int) kafka.ConsumerRecord {
	return kafka.ConsumerRecord{
		Value:     make([]byte, n),
		Timestamp: time.Now(),
	}
}
