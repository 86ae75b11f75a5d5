package runtime

import (
	"time"

	"github.com/drblury/eventpub/internal/runtime/attributes"
	"github.com/drblury/eventpub/internal/runtime/logging"
	"github.com/drblury/eventpub/internal/runtime/schema"
)

// PublishContext provides information about a publish call to hooks.
type PublishContext struct {
	// Topic is the topic id the caller published to.
	Topic string
	// EventID is the envelope event id. Empty when publishing failed before
	// the envelope was built.
	EventID string
	// EventType is the envelope event type.
	EventType string
	// Encoding is the encoding reported for the topic.
	Encoding schema.Encoding
	// Size is the encoded size in bytes.
	Size int
	// Attributes are the transport attributes sent with the message.
	Attributes attributes.Attributes
	// MessageID is the id assigned by the transport (only set in OnPublished).
	MessageID string
	// StartedAt is when the publish call started.
	StartedAt time.Time
	// Duration is how long the call took (only set in OnPublished and OnPublishError).
	Duration time.Duration
}

// PublishHooks defines callbacks for the publish lifecycle.
// All hooks are optional - nil hooks are simply not called.
type PublishHooks struct {
	// OnPublishStart is called when a publish call starts, before any
	// validation.
	OnPublishStart func(ctx PublishContext)

	// OnPublished is called after the transport accepted the message.
	OnPublished func(ctx PublishContext)

	// OnPublishError is called when the publish call fails.
	OnPublishError func(ctx PublishContext, err error)
}

// Merge combines two PublishHooks, creating a new PublishHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h PublishHooks) Merge(other PublishHooks) PublishHooks {
	return PublishHooks{
		OnPublishStart: chainHooks(h.OnPublishStart, other.OnPublishStart),
		OnPublished:    chainHooks(h.OnPublished, other.OnPublished),
		OnPublishError: chainErrorHooks(h.OnPublishError, other.OnPublishError),
	}
}

func (h PublishHooks) start(ctx PublishContext) {
	if h.OnPublishStart != nil {
		h.OnPublishStart(ctx)
	}
}

func (h PublishHooks) done(ctx PublishContext) {
	if h.OnPublished != nil {
		h.OnPublished(ctx)
	}
}

func (h PublishHooks) fail(ctx PublishContext, err error) {
	if h.OnPublishError != nil {
		h.OnPublishError(ctx, err)
	}
}

func chainHooks(a, b func(PublishContext)) func(PublishContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx PublishContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(PublishContext, error)) func(PublishContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx PublishContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// LoggingHooks returns pre-built hooks that log every publish at debug level
// and failures at error level.
func LoggingHooks(logger logging.ServiceLogger) PublishHooks {
	return PublishHooks{
		OnPublished: func(ctx PublishContext) {
			logger.Debug("Event published", logging.LogFields{
				"topic":       ctx.Topic,
				"event_id":    ctx.EventID,
				"message_id":  ctx.MessageID,
				"encoding":    ctx.Encoding.String(),
				"size_bytes":  ctx.Size,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
		OnPublishError: func(ctx PublishContext, err error) {
			logger.Error("Event publish failed", err, logging.LogFields{
				"topic":       ctx.Topic,
				"event_id":    ctx.EventID,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on publish errors.
func AlertingHooks(alertFunc func(ctx PublishContext, err error)) PublishHooks {
	return PublishHooks{
		OnPublishError: alertFunc,
	}
}
