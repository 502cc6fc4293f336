package translate

import (
	"github.com/hugolhafner/go-consume/kafka"
)

var _ Translator = stringTranslator{}

type stringTranslator struct{}

// String returns a Translator that exposes key and value as strings.
func String() Translator {
	return stringTranslator{}
}

func (stringTranslator) Translate(rec kafka.ConsumerRecord) (ClientRecord, int64, error) {
	out := ClientRecord{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	}

	if rec.Key != nil {
		out.Key = string(rec.Key)
	}
	if rec.Value != nil {
		out.Value = string(rec.Value)
	}

	return out, roughSize(rec), nil
}
