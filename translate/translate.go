// Package translate converts records from the wire format delivered by the
// consumer into the client-facing representation, and reports an
// approximate byte size used for response budgeting. Sizes are derived
// from the raw key and value lengths, not from the serialized client
// representation; budgets are deliberately approximate.
package translate

import (
	"github.com/hugolhafner/go-consume/kafka"
)

// ClientRecord is the shape handed back to the caller of a read.
type ClientRecord struct {
	Topic     string
	Key       any
	Value     any
	Partition int32
	Offset    int64
}

type Translator interface {
	// Translate returns the client record and its approximate size in
	// bytes. The size must not depend on whether the record is later
	// kept or deferred.
	Translate(rec kafka.ConsumerRecord) (ClientRecord, int64, error)
}

func roughSize(rec kafka.ConsumerRecord) int64 {
	return int64(len(rec.Key) + len(rec.Value))
}
