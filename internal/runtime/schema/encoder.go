package schema

import (
	"fmt"

	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
	"github.com/drblury/eventpub/internal/runtime/jsoncodec"
)

// Encoder turns records into bytes for a topic's configured encoding.
type Encoder struct {
	schema       *Schema
	validateJSON bool
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithoutJSONValidation makes JSON encoding skip the schema check.
func WithoutJSONValidation() EncoderOption {
	return func(e *Encoder) {
		e.validateJSON = false
	}
}

// NewEncoder returns an Encoder bound to s. JSON output is validated
// against s unless WithoutJSONValidation is given.
func NewEncoder(s *Schema, opts ...EncoderOption) *Encoder {
	e := &Encoder{schema: s, validateJSON: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Schema returns the schema the encoder validates against.
func (e *Encoder) Schema() *Schema { return e.schema }

// Encode serializes record for mode. Binary output is an Avro datum with no
// embedded schema. Records that do not conform fail with ErrEncoding and
// unknown modes with ErrConfiguration.
func (e *Encoder) Encode(record map[string]any, mode Encoding) ([]byte, error) {
	switch mode {
	case EncodingBinary:
		return e.schema.binary(record)
	case EncodingJSON:
		if e.validateJSON {
			if _, err := e.schema.binary(record); err != nil {
				return nil, err
			}
		}
		data, err := jsoncodec.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errspkg.ErrEncoding, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unsupported topic encoding %s", errspkg.ErrConfiguration, mode)
	}
}
