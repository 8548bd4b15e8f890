package export

import (
	"github.com/pkg/errors"
)

// payloadSkip replaces bulky binary fields in exports.
const payloadSkip = "skip"

// payloadKeys are the generic-map fields holding raw media bytes.
// Replacing them bounds export size while keeping the structure.
var payloadKeys = map[string]bool{
	"Data":    true,
	"RawData": true,
	"Payload": true,
	"Raw":     true,
}

// RecordToMap round-trips any record through JSON into a generic map
// for sanitizing and flattening.
func RecordToMap(rec any) (map[string]any, error) {
	m, err := toMap(rec)
	if err != nil {
		return nil, errors.Wrap(err, "record to map")
	}
	return m, nil
}

// TrimPayloads walks a record map and replaces raw media payloads with
// the literal "skip", mirroring the size cap applied to exports.
func TrimPayloads(m map[string]any) {
	trimValue(m)
}

func trimValue(v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			if payloadKeys[k] {
				if _, isString := sub.(string); isString && sub != nil {
					val[k] = payloadSkip
					continue
				}
			}
			trimValue(sub)
		}
	case []any:
		for _, sub := range val {
			trimValue(sub)
		}
	}
}
