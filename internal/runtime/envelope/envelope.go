// Package envelope builds the event context attached to every published
// record, together with the payload metadata block.
package envelope

import (
	"time"

	idspkg "github.com/drblury/eventpub/internal/runtime/ids"
)

// SpecVersion is the envelope format version stamped on every event.
const SpecVersion = "1.0.0"

// MetadataVersion is the version of the payload metadata block.
const MetadataVersion = "1.0.0"

// Wire field names of the envelope and the record around it.
const (
	FieldPayload      = "payload"
	FieldEventContext = "eventContext"
	FieldMetadata     = "metadata"
)

// OptionalString is a string that may be absent. On the wire it is the
// union form {"string": v} or null.
type OptionalString struct {
	value string
	set   bool
}

// Some returns a present OptionalString.
func Some(v string) OptionalString { return OptionalString{value: v, set: true} }

// None returns an absent OptionalString.
func None() OptionalString { return OptionalString{} }

// FromString treats the empty string as absent.
func FromString(v string) OptionalString {
	if v == "" {
		return None()
	}
	return Some(v)
}

// Get returns the value and whether it is present.
func (o OptionalString) Get() (string, bool) { return o.value, o.set }

// Native returns the union form understood by the Avro codec.
func (o OptionalString) Native() any {
	if !o.set {
		return nil
	}
	return map[string]any{"string": o.value}
}

// Envelope is the event context of one published event.
type Envelope struct {
	EventID        string
	EventType      string
	EventTimestamp time.Time
	Source         string
	SpecVersion    string
	CorrelationID  OptionalString
	TraceID        OptionalString
}

// Native returns the envelope as the map placed under eventContext.
func (e Envelope) Native() map[string]any {
	return map[string]any{
		"eventId":        e.EventID,
		"eventType":      e.EventType,
		"eventTimestamp": e.EventTimestamp,
		"source":         e.Source,
		"specVersion":    e.SpecVersion,
		"correlationId":  e.CorrelationID.Native(),
		"traceId":        e.TraceID.Native(),
	}
}

// Builder holds the per-publisher envelope fields.
type Builder struct {
	EventType     string
	Source        string
	CorrelationID OptionalString

	// Now and NewID default to the wall clock and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Build returns an envelope with a fresh event id and timestamp.
func (b Builder) Build(traceID OptionalString) Envelope {
	now := b.Now
	if now == nil {
		now = time.Now
	}
	newID := b.NewID
	if newID == nil {
		newID = idspkg.NewEventID
	}
	return Envelope{
		EventID:        newID(),
		EventType:      b.EventType,
		EventTimestamp: now().UTC(),
		Source:         b.Source,
		SpecVersion:    SpecVersion,
		CorrelationID:  b.CorrelationID,
		TraceID:        traceID,
	}
}

// PayloadMetadata is injected at payload.metadata.
type PayloadMetadata struct {
	Version string
	Tags    []string
}

// NewPayloadMetadata returns the metadata block for tags. Nil tags encode as
// an empty list.
func NewPayloadMetadata(tags []string) PayloadMetadata {
	return PayloadMetadata{Version: MetadataVersion, Tags: tags}
}

// Native returns the union form of the metadata block.
func (m PayloadMetadata) Native() map[string]any {
	tags := make([]any, len(m.Tags))
	for i, t := range m.Tags {
		tags[i] = t
	}
	version := m.Version
	if version == "" {
		version = MetadataVersion
	}
	return map[string]any{
		"EventPayloadMetadata": map[string]any{
			"version": version,
			"tags":    tags,
		},
	}
}
