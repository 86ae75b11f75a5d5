package runtime

import (
	"github.com/drblury/eventpub/internal/runtime/attributes"
	"github.com/drblury/eventpub/internal/runtime/envelope"
)

// PublishOption configures a single Publish call.
type PublishOption func(*publishOptions)

type publishOptions struct {
	attrs   attributes.Attributes
	traceID envelope.OptionalString
	traced  bool
}

// WithAttributes adds transport attributes to the message. The reserved
// encoding, event id and event type attributes always win.
func WithAttributes(attrs map[string]string) PublishOption {
	return func(o *publishOptions) {
		if o.attrs == nil {
			o.attrs = make(attributes.Attributes, len(attrs))
		}
		for k, v := range attrs {
			o.attrs[k] = v
		}
	}
}

// WithTraceID sets the envelope trace id, the empty string included. Without
// it the trace id of the span in the context is used, if any.
func WithTraceID(traceID string) PublishOption {
	return func(o *publishOptions) {
		o.traceID = envelope.Some(traceID)
		o.traced = true
	}
}

// WithoutTraceID publishes with a null trace id even when ctx carries a span.
func WithoutTraceID() PublishOption {
	return func(o *publishOptions) {
		o.traceID = envelope.None()
		o.traced = true
	}
}

func collectPublishOptions(opts []PublishOption) publishOptions {
	var o publishOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
