package jsoncodec

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

var (
	defaultConfig = sonic.ConfigStd

	// objectConfig keeps integers as int64 so decoded payloads stay
	// acceptable to Avro long/int fields.
	objectConfig = sonic.Config{
		EscapeHTML:       true,
		SortMapKeys:      true,
		CompactMarshaler: true,
		CopyString:       true,
		ValidateString:   true,
		UseInt64:         true,
	}.Froze()
)

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

// Valid reports whether data is a single well-formed JSON value.
func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}

// ToObject converts v into a generic JSON object by round-tripping it
// through the codec. Non-object values are rejected.
func ToObject(v any) (map[string]any, error) {
	data, err := objectConfig.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeObject(data)
}

// DecodeObject decodes data into a generic JSON object.
func DecodeObject(data []byte) (map[string]any, error) {
	var out any
	if err := objectConfig.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	obj, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", out)
	}
	return obj, nil
}
