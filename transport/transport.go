// Package transport defines the interfaces shared by eventpub transports.
// Each transport implementation (kafka, rabbitmq, aws, etc.) lives in its own
// sub-package and registers itself with the transport registry.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// MetadataMessageID is set on a published message by transports whose broker
// assigns its own message id. Publishers prefer it over the message UUID.
const MetadataMessageID = "eventpub_broker_message_id"

// Builder is the function signature for creating a publisher from config.
// Each transport package provides a Builder that is registered by name.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error)

// Config provides the configuration values needed by transports.
// This interface allows transports to access only the config they need
// without depending on the full config package.
type Config interface {
	// GetPubSubSystem returns the transport type name.
	GetPubSubSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS and JetStream
	GetNATSURL() string
	GetNATSStream() string

	// HTTP
	GetHTTPPublisherURL() string

	// IO
	GetIOFile() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// MessageID returns the broker-assigned id recorded on msg, falling back to
// the message UUID.
func MessageID(msg *message.Message) string {
	if id := msg.Metadata.Get(MetadataMessageID); id != "" {
		return id
	}
	return msg.UUID
}
