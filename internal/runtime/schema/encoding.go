package schema

import (
	"fmt"
	"strings"

	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
)

// Encoding is the message encoding a topic is configured with.
type Encoding int

const (
	EncodingUnspecified Encoding = iota
	// EncodingBinary is the Avro binary datum encoding (no embedded schema).
	EncodingBinary
	// EncodingJSON is plain JSON text.
	EncodingJSON
)

func (e Encoding) String() string {
	switch e {
	case EncodingBinary:
		return "BINARY"
	case EncodingJSON:
		return "JSON"
	case EncodingUnspecified:
		return "ENCODING_UNSPECIFIED"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding maps a configured encoding name onto an Encoding. Unknown
// names fail with ErrConfiguration instead of defaulting.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "BINARY":
		return EncodingBinary, nil
	case "JSON":
		return EncodingJSON, nil
	default:
		return EncodingUnspecified, fmt.Errorf("%w: unsupported encoding %q", errspkg.ErrConfiguration, name)
	}
}
