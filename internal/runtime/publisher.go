package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/eventpub/internal/runtime/attributes"
	configpkg "github.com/drblury/eventpub/internal/runtime/config"
	"github.com/drblury/eventpub/internal/runtime/envelope"
	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
	"github.com/drblury/eventpub/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/eventpub/internal/runtime/logging"
	"github.com/drblury/eventpub/internal/runtime/schema"
	transportpkg "github.com/drblury/eventpub/internal/runtime/transport"
)

const tracerName = "eventpub"

var protoJSONMarshalOptions = protojson.MarshalOptions{
	EmitUnpopulated: true,
}

// Dependencies allows callers to override the collaborators of a Publisher.
// Zero values select the defaults.
type Dependencies struct {
	// Client replaces the Watermill-backed transport client.
	Client transportpkg.Client
	// TransportFactory builds the Watermill publishers of the default client.
	TransportFactory transportpkg.Factory
	// Registerer receives the Prometheus collectors when metrics are enabled.
	Registerer prometheus.Registerer
	Hooks      PublishHooks

	// Now and NewID feed the envelope clock and event ids.
	Now   func() time.Time
	NewID func() string
}

// Publisher enriches messages with an event envelope, encodes them against a
// schema and publishes them through a per-topic handle.
type Publisher struct {
	conf   configpkg.Config
	logger loggingpkg.ServiceLogger

	client    transportpkg.Client
	handles   *handleCache
	encoder   *schema.Encoder
	envelope  envelope.Builder
	metadata  envelope.PayloadMetadata
	metrics   *PublishMetrics
	hooks     PublishHooks
	tracer    trace.Tracer
	resources *resourceTracker
}

// NewPublisher validates conf, loads the schema and prepares the transport
// client. Topic handles are opened lazily on first publish.
func NewPublisher(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) (*Publisher, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	p := &Publisher{
		conf:      conf.WithDefaults(),
		logger:    log,
		hooks:     deps.Hooks,
		tracer:    otel.Tracer(tracerName),
		resources: newResourceTracker(),
	}

	sch, err := schema.Load(p.conf.SchemaFile)
	if err != nil {
		return nil, err
	}
	var encOpts []schema.EncoderOption
	if p.conf.SkipJSONValidation {
		encOpts = append(encOpts, schema.WithoutJSONValidation())
	}
	p.encoder = schema.NewEncoder(sch, encOpts...)

	p.envelope = envelope.Builder{
		EventType:     p.conf.EventType,
		Source:        p.conf.EventSource,
		CorrelationID: envelope.FromString(p.conf.CorrelationID),
		Now:           deps.Now,
		NewID:         deps.NewID,
	}
	p.metadata = envelope.NewPayloadMetadata(p.conf.MetadataTags)

	p.client = deps.Client
	if p.client == nil {
		client, err := transportpkg.NewWatermillClient(&p.conf, deps.TransportFactory, loggingpkg.NewWatermillAdapter(log))
		if err != nil {
			return nil, err
		}
		p.client = client
	}

	p.metrics = NewPublishMetrics(deps.Registerer)
	if p.conf.MetricsEnabled {
		if err := p.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register publish metrics: %w", err)
		}
	}

	p.handles = newHandleCache(p.client)
	p.handles.onChange = p.metrics.SetOpenHandles
	p.handles.onOpen = func(path transportpkg.TopicPath) {
		p.logger.Info("Opened topic handle", loggingpkg.LogFields{"topic": path.String()})
	}

	p.logger.Info("Creating event publisher", loggingpkg.LogFields{
		"project":      p.conf.ProjectID,
		"transport":    p.conf.PubSubSystem,
		"schema":       sch.Path(),
		"event_type":   p.conf.EventType,
		"event_source": p.conf.EventSource,
	})
	return p, nil
}

// Publish enriches msg with the event envelope and payload metadata, encodes
// it with the topic's encoding and publishes it. msg must carry an object
// under "payload". msg itself is never modified.
//
// Unknown topics fail with a *TopicNotFoundError. Every other failure is a
// *PublishError wrapping the cause.
func (p *Publisher) Publish(ctx context.Context, topicID string, msg map[string]any, opts ...PublishOption) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()

	ctx, span := p.tracer.Start(ctx, "eventpub.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", p.conf.PubSubSystem),
			attribute.String("messaging.destination.name", topicID),
		),
	)
	defer span.End()

	if p.conf.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.conf.PublishTimeout)
		defer cancel()
	}

	hookCtx := PublishContext{
		Topic:     topicID,
		EventType: p.envelope.EventType,
		StartedAt: started,
	}
	p.hooks.start(hookCtx)

	id, err := p.publish(ctx, span, topicID, msg, collectPublishOptions(opts), &hookCtx)
	hookCtx.Duration = time.Since(started)

	if err != nil {
		err = errspkg.WrapPublish(topicID, err)
		reason := p.metrics.RecordFailure(p.metricsTopic(topicID), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(reason))
		p.logger.Error("Failed to publish event", err, loggingpkg.LogFields{
			"topic":    topicID,
			"event_id": hookCtx.EventID,
			"reason":   string(reason),
		})
		p.hooks.fail(hookCtx, err)
		return "", err
	}

	hookCtx.MessageID = id
	p.metrics.RecordPublished(topicID, hookCtx.Encoding.String(), hookCtx.Size, hookCtx.Duration)
	span.SetAttributes(attribute.String("messaging.message.id", id))
	p.hooks.done(hookCtx)
	return id, nil
}

func (p *Publisher) publish(ctx context.Context, span trace.Span, topicID string, msg map[string]any, opts publishOptions, hookCtx *PublishContext) (string, error) {
	if topicID == "" {
		return "", errspkg.ErrTopicRequired
	}
	record, payload, err := newRecord(msg)
	if err != nil {
		return "", err
	}

	handle, path, err := p.handles.getOrCreate(ctx, topicID)
	if err != nil {
		return "", err
	}
	enc, err := p.client.TopicEncoding(ctx, path)
	if err != nil {
		return "", err
	}
	hookCtx.Encoding = enc

	env := p.envelope.Build(p.traceID(ctx, opts))
	hookCtx.EventID = env.EventID
	record[envelope.FieldEventContext] = env.Native()
	payload[envelope.FieldMetadata] = p.metadata.Native()

	span.SetAttributes(
		attribute.String("eventpub.event_id", env.EventID),
		attribute.String("eventpub.encoding", enc.String()),
	)
	p.logger.Debug("Encoding event", loggingpkg.LogFields{
		"topic":    path.String(),
		"encoding": enc.String(),
		"event_id": env.EventID,
	})

	data, err := p.encoder.Encode(record, enc)
	if err != nil {
		return "", err
	}
	hookCtx.Size = len(data)

	caps := p.client.Capabilities()
	if !caps.Allows(len(data)) {
		return "", fmt.Errorf("%w: %d bytes, %s allows %d", errspkg.ErrMessageTooLarge, len(data), caps.Name, caps.MaxMessageSize)
	}

	attrs := attributes.New(
		attributes.KeyEncoding, enc.String(),
		attributes.KeyEventID, env.EventID,
		attributes.KeyEventType, env.EventType,
	).WithDefaults(opts.attrs)
	hookCtx.Attributes = attrs

	return handle.Publish(ctx, data, attrs)
}

// metricsTopic returns the label failures of topicID are recorded under.
// Only configured or opened topics get their own label.
func (p *Publisher) metricsTopic(topicID string) string {
	if _, ok := p.conf.Topics[topicID]; ok {
		return topicID
	}
	if p.handles.has(topicID) {
		return topicID
	}
	return UnknownTopicLabel
}

// traceID picks the explicit trace id, then the one of the span in ctx.
func (p *Publisher) traceID(ctx context.Context, opts publishOptions) envelope.OptionalString {
	if opts.traced {
		return opts.traceID
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return envelope.Some(sc.TraceID().String())
	}
	return envelope.None()
}

// Close closes every open topic handle. Later publishes fail with
// ErrPublisherClosed. Calling Close again is a no-op.
func (p *Publisher) Close() error {
	if p.handles.isClosed() {
		return nil
	}
	p.logger.Info("Closing event publisher", loggingpkg.LogFields{"open_handles": p.handles.len()})
	if err := p.handles.closeAll(); err != nil {
		p.logger.Error("Failed to close topic handles", err, nil)
		return err
	}
	return nil
}

// Stats returns a snapshot of the publisher counters.
func (p *Publisher) Stats() PublisherStats {
	snapshot := p.metrics.GetSnapshot()
	return PublisherStats{
		OpenHandles: p.handles.len(),
		Closed:      p.handles.isClosed(),
		Topics:      snapshot.Topics,
		Resource:    p.resources.Snapshot(),
		CollectedAt: snapshot.CollectedAt,
	}
}

// Metrics exposes the publish metrics collector.
func (p *Publisher) Metrics() *PublishMetrics { return p.metrics }

// newRecord builds the record to encode from a deep copy of msg. The returned
// payload is the object stored under "payload" in the record.
func newRecord(msg map[string]any) (map[string]any, map[string]any, error) {
	if msg == nil {
		return nil, nil, fmt.Errorf("%w: message is nil", errspkg.ErrInvalidMessage)
	}
	raw, ok := msg[envelope.FieldPayload]
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing %q field", errspkg.ErrInvalidMessage, envelope.FieldPayload)
	}
	payload, err := payloadObject(raw)
	if err != nil {
		return nil, nil, err
	}

	record := make(map[string]any, len(msg)+1)
	for k, v := range msg {
		if k == envelope.FieldPayload {
			continue
		}
		record[k] = cloneValue(v)
	}
	record[envelope.FieldPayload] = payload
	return record, payload, nil
}

// payloadObject returns a private object copy of the payload. Proto messages
// go through protojson and other values through the JSON codec.
func payloadObject(v any) (map[string]any, error) {
	switch payload := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: payload is null", errspkg.ErrInvalidMessage)
	case map[string]any:
		return cloneMap(payload), nil
	case proto.Message:
		data, err := protoJSONMarshalOptions.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal %T: %v", errspkg.ErrInvalidMessage, payload, err)
		}
		obj, err := jsoncodec.DecodeObject(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errspkg.ErrInvalidMessage, err)
		}
		return obj, nil
	default:
		obj, err := jsoncodec.ToObject(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: payload %T: %v", errspkg.ErrInvalidMessage, payload, err)
		}
		return obj, nil
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
