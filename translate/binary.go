package translate

import (
	"github.com/hugolhafner/go-consume/kafka"
)

var _ Translator = binaryTranslator{}

type binaryTranslator struct{}

// Binary returns a Translator that passes key and value through as raw
// bytes.
func Binary() Translator {
	return binaryTranslator{}
}

func (binaryTranslator) Translate(rec kafka.ConsumerRecord) (ClientRecord, int64, error) {
	return ClientRecord{
		Topic:     rec.Topic,
		Key:       rec.Key,
		Value:     rec.Value,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	}, roughSize(rec), nil
}
