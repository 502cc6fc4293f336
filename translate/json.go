package translate

import (
	"encoding/json"
	"fmt"

	"github.com/hugolhafner/go-consume/kafka"
)

var _ Translator = jsonTranslator{}

type jsonTranslator struct{}

// JSON returns a Translator that decodes key and value as JSON documents.
// The reported size is still based on the raw bytes, not the decoded form.
func JSON() Translator {
	return jsonTranslator{}
}

func (jsonTranslator) Translate(rec kafka.ConsumerRecord) (ClientRecord, int64, error) {
	out := ClientRecord{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	}

	if len(rec.Key) > 0 {
		if err := json.Unmarshal(rec.Key, &out.Key); err != nil {
			return ClientRecord{}, 0, fmt.Errorf("decode key: %w", err)
		}
	}
	if len(rec.Value) > 0 {
		if err := json.Unmarshal(rec.Value, &out.Value); err != nil {
			return ClientRecord{}, 0, fmt.Errorf("decode value: %w", err)
		}
	}

	return out, roughSize(rec), nil
}
