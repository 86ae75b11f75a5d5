// Package schema loads Avro schemas and encodes records against them.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/linkedin/goavro/v2"

	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
)

// Schema is a parsed, immutable Avro schema. It is safe for concurrent use.
type Schema struct {
	codec *goavro.Codec
	path  string
}

var loaded sync.Map // absolute path -> *Schema

// Parse compiles an Avro schema definition.
func Parse(definition []byte) (*Schema, error) {
	codec, err := goavro.NewCodec(string(definition))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid avro schema: %v", errspkg.ErrConfiguration, err)
	}
	return &Schema{codec: codec}, nil
}

// Load reads and parses the schema file at path. Each file is parsed once per
// process; later calls for the same path return the cached Schema.
func Load(path string) (*Schema, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: schema file is required", errspkg.ErrConfiguration)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve schema path %q: %v", errspkg.ErrConfiguration, path, err)
	}
	if cached, ok := loaded.Load(abs); ok {
		return cached.(*Schema), nil
	}

	definition, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema file: %v", errspkg.ErrConfiguration, err)
	}
	parsed, err := Parse(definition)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	parsed.path = abs

	actual, _ := loaded.LoadOrStore(abs, parsed)
	return actual.(*Schema), nil
}

// Path returns the file the schema was loaded from, or "" when it was parsed
// from memory.
func (s *Schema) Path() string { return s.path }

// Canonical returns the parsing canonical form of the schema.
func (s *Schema) Canonical() string { return s.codec.CanonicalSchema() }

// Fingerprint returns the 64-bit Rabin fingerprint of the canonical form.
func (s *Schema) Fingerprint() uint64 { return s.codec.Rabin }

// binary encodes record as an Avro datum.
func (s *Schema) binary(record map[string]any) ([]byte, error) {
	data, err := s.codec.BinaryFromNative(nil, record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errspkg.ErrEncoding, err)
	}
	return data, nil
}

// Decode converts Avro binary datum data back into its native form.
func (s *Schema) Decode(data []byte) (map[string]any, error) {
	native, rest, err := s.codec.NativeFromBinary(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errspkg.ErrEncoding, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after datum", errspkg.ErrEncoding, len(rest))
	}
	record, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: schema does not describe a record", errspkg.ErrEncoding)
	}
	return record, nil
}
