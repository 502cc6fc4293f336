package translate

import (
	"fmt"

	"github.com/hugolhafner/go-consume/kafka"
	"google.golang.org/protobuf/proto"
)

type protobufTranslator[T proto.Message] struct{}

// Protobuf returns a Translator that unmarshals the record value into a
// fresh message of type T. The key stays raw bytes.
func Protobuf[T proto.Message]() Translator {
	return protobufTranslator[T]{}
}

func (protobufTranslator[T]) Translate(rec kafka.ConsumerRecord) (ClientRecord, int64, error) {
	var prototype T
	msg := prototype.ProtoReflect().New().Interface()

	if err := proto.Unmarshal(rec.Value, msg); err != nil {
		return ClientRecord{}, 0, fmt.Errorf("unmarshal value: %w", err)
	}

	return ClientRecord{
		Topic:     rec.Topic,
		Key:       rec.Key,
		Value:     msg,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	}, roughSize(rec), nil
}
