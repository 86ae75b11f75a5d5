package eventpub

import (
	runtimepkg "github.com/drblury/eventpub/internal/runtime"
	configpkg "github.com/drblury/eventpub/internal/runtime/config"
	"github.com/drblury/eventpub/internal/runtime/envelope"
	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
	idspkg "github.com/drblury/eventpub/internal/runtime/ids"
	jsoncodec "github.com/drblury/eventpub/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/eventpub/internal/runtime/logging"
	"github.com/drblury/eventpub/internal/runtime/schema"
	transportpkg "github.com/drblury/eventpub/internal/runtime/transport"
	newtransport "github.com/drblury/eventpub/transport"
)

type (
	Config       = configpkg.Config
	Publisher    = runtimepkg.Publisher
	Dependencies = runtimepkg.Dependencies

	PublishOption = runtimepkg.PublishOption
	PublishResult = runtimepkg.PublishResult

	// Transport collaborator
	TransportClient  = transportpkg.Client
	TopicHandle      = transportpkg.Handle
	TopicPath        = transportpkg.TopicPath
	TransportFactory = transportpkg.Factory
	FactoryFunc      = transportpkg.FactoryFunc
	WatermillClient  = transportpkg.WatermillClient

	// Schema and envelope
	Encoding        = schema.Encoding
	Schema          = schema.Schema
	Envelope        = envelope.Envelope
	OptionalString  = envelope.OptionalString
	PayloadMetadata = envelope.PayloadMetadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Publish lifecycle hooks
	PublishContext = runtimepkg.PublishContext
	PublishHooks   = runtimepkg.PublishHooks

	// Metrics and stats
	PublishMetrics    = runtimepkg.PublishMetrics
	MetricsSnapshot   = runtimepkg.MetricsSnapshot
	PublisherStats    = runtimepkg.PublisherStats
	TopicStats        = runtimepkg.TopicStats
	LatencyMetrics    = runtimepkg.LatencyMetrics
	ThroughputMetrics = runtimepkg.ThroughputMetrics
	ErrorBreakdown    = runtimepkg.ErrorBreakdown
	ResourceUsage     = runtimepkg.ResourceUsage
	ErrorCategory     = runtimepkg.ErrorCategory

	ConfigValidationError = errspkg.ConfigValidationError
	PublishError          = errspkg.PublishError
	TopicNotFoundError    = errspkg.TopicNotFoundError

	// Transport capabilities
	Capabilities = transportpkg.Capabilities

	// Modular transport types
	TransportBuilder  = newtransport.Builder
	TransportConfig   = newtransport.Config
	TransportRegistry = newtransport.Registry
)

var (
	NewPublisher       = runtimepkg.NewPublisher
	NewWatermillClient = transportpkg.NewWatermillClient
	DefaultFactory     = transportpkg.DefaultFactory
	ValidateConfig     = configpkg.ValidateConfig
	NewPublishMetrics  = runtimepkg.NewPublishMetrics
	MetricsHandler     = runtimepkg.MetricsHandler
	WithAttributes     = runtimepkg.WithAttributes
	WithTraceID        = runtimepkg.WithTraceID
	WithoutTraceID     = runtimepkg.WithoutTraceID
	LoggingHooks       = runtimepkg.LoggingHooks
	AlertingHooks      = runtimepkg.AlertingHooks
	ParseEncoding      = schema.ParseEncoding
	LoadSchema         = schema.Load
	ParseSchema        = schema.Parse
	NewEncoder         = schema.NewEncoder
	NewPayloadMetadata = envelope.NewPayloadMetadata
	GetCapabilities    = transportpkg.GetCapabilities
	NewMessageID       = idspkg.NewMessageID
	NewEventID         = idspkg.NewEventID
	BrokerMessageID    = newtransport.MessageID

	// Modular transport registry.
	// Import individual transports via: _ "github.com/drblury/eventpub/transport/kafka"
	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Encode    = jsoncodec.Encode

	ErrConfigRequired  = errspkg.ErrConfigRequired
	ErrLoggerRequired  = errspkg.ErrLoggerRequired
	ErrTopicRequired   = errspkg.ErrTopicRequired
	ErrInvalidMessage  = errspkg.ErrInvalidMessage
	ErrConfiguration   = errspkg.ErrConfiguration
	ErrTopicNotFound   = errspkg.ErrTopicNotFound
	ErrEncoding        = errspkg.ErrEncoding
	ErrTransport       = errspkg.ErrTransport
	ErrPublishFailed   = errspkg.ErrPublishFailed
	ErrPublisherClosed = errspkg.ErrPublisherClosed
	ErrMessageTooLarge = errspkg.ErrMessageTooLarge

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger
)

// Topic encodings.
const (
	EncodingUnspecified = schema.EncodingUnspecified
	EncodingBinary      = schema.EncodingBinary
	EncodingJSON        = schema.EncodingJSON
)

// Envelope constants stamped on every event.
const (
	SpecVersion     = envelope.SpecVersion
	MetadataVersion = envelope.MetadataVersion
)

// Error category constants reported in stats and the failures_total reason label.
const (
	ErrorCategoryNone          = runtimepkg.ErrorCategoryNone
	ErrorCategoryValidation    = runtimepkg.ErrorCategoryValidation
	ErrorCategoryTopicNotFound = runtimepkg.ErrorCategoryTopicNotFound
	ErrorCategoryEncoding      = runtimepkg.ErrorCategoryEncoding
	ErrorCategoryTransport     = runtimepkg.ErrorCategoryTransport
	ErrorCategoryTimeout       = runtimepkg.ErrorCategoryTimeout
	ErrorCategoryClosed        = runtimepkg.ErrorCategoryClosed
	ErrorCategoryOther         = runtimepkg.ErrorCategoryOther

	UnknownTopicLabel = runtimepkg.UnknownTopicLabel
)
