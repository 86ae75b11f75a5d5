// Package attributes holds the string key/value pairs sent alongside a
// published message, outside of the encoded body.
package attributes

import "github.com/ThreeDotsLabs/watermill/message"

// Standard attribute keys set by the publisher.
const (
	KeyEncoding  = "eventpub_encoding"
	KeyEventID   = "eventpub_event_id"
	KeyEventType = "eventpub_event_type"
)

// Attributes represents the headers carried alongside an encoded message.
type Attributes map[string]string

// Clone returns a shallow copy. The result is never nil.
func (a Attributes) Clone() Attributes {
	cloned := make(Attributes, len(a))
	for k, v := range a {
		cloned[k] = v
	}
	return cloned
}

// With returns a copy containing the provided key/value pair.
func (a Attributes) With(key, value string) Attributes {
	cloned := a.Clone()
	cloned[key] = value
	return cloned
}

// WithDefaults returns a copy where entries of defaults fill in keys that a
// does not already set.
func (a Attributes) WithDefaults(defaults Attributes) Attributes {
	cloned := a.Clone()
	for k, v := range defaults {
		if _, ok := cloned[k]; !ok {
			cloned[k] = v
		}
	}
	return cloned
}

// New constructs Attributes from alternating key/value pairs.
func New(pairs ...string) Attributes {
	attrs := make(Attributes, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		attrs[pairs[i]] = pairs[i+1]
	}
	return attrs
}

// ToWatermill converts attributes into Watermill message metadata.
func ToWatermill(attrs Attributes) message.Metadata {
	wm := make(message.Metadata, len(attrs))
	for k, v := range attrs {
		wm[k] = v
	}
	return wm
}

// FromWatermill converts Watermill message metadata into attributes.
func FromWatermill(md message.Metadata) Attributes {
	attrs := make(Attributes, len(md))
	for k, v := range md {
		attrs[k] = v
	}
	return attrs
}
