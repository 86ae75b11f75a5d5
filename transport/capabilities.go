package transport

// Capabilities describes the publishing features of a transport backend.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// SupportsOrdering indicates the transport keeps publish order within a topic.
	SupportsOrdering bool

	// SupportsTracing indicates the transport propagates tracing headers natively.
	SupportsTracing bool

	// SupportsBatching indicates the transport can batch multiple messages.
	SupportsBatching bool

	// AssignsMessageIDs indicates the broker returns its own message id,
	// recorded under MetadataMessageID.
	AssignsMessageIDs bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// Allows reports whether a payload of size bytes fits the transport limit.
func (c Capabilities) Allows(size int) bool {
	return c.MaxMessageSize <= 0 || int64(size) <= c.MaxMessageSize
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
	}

	// KafkaCapabilities for Apache Kafka transport.
	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsBatching: true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsTracing:  true,
		MaxMessageSize:   134217728, // 128MB broker default
	}

	// NATSCapabilities for NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// NATSJetStreamCapabilities for NATS JetStream transport.
	NATSJetStreamCapabilities = Capabilities{
		Name:              "nats-jetstream",
		SupportsOrdering:  true,
		SupportsTracing:   true,
		AssignsMessageIDs: true,
		MaxMessageSize:    1048576, // Default 1MB
	}

	// AWSCapabilities for AWS SNS transport.
	AWSCapabilities = Capabilities{
		Name:             "aws",
		SupportsTracing:  true,
		SupportsBatching: true,
		MaxMessageSize:   262144, // 256KB
	}

	// HTTPCapabilities for HTTP-based transport.
	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}

	// IOCapabilities for file-based I/O transport.
	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsOrdering: true,
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Uses the registry to look up capabilities registered by each transport package.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
