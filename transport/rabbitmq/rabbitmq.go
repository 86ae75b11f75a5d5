// Package rabbitmq provides a RabbitMQ/AMQP transport for eventpub.
package rabbitmq

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/eventpub/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// PublisherFactory allows overriding the publisher creation for testing.
// The publisher owns its connection and closes it on Close.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return amqp.NewPublisher(cfg, logger)
}

func init() {
	Register()
}

// Register registers the RabbitMQ transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

// Build creates a new RabbitMQ publisher. Each topic maps to a durable fanout
// exchange of the same name.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	url := cfg.GetRabbitMQURL()
	if url == "" {
		return nil, errors.New("rabbitmq: URL is required")
	}

	amqpConfig := amqp.NewDurablePubSubConfig(
		url,
		amqp.GenerateQueueNameTopicName,
	)
	amqpConfig.Connection.Reconnect = amqp.DefaultReconnectConfig()

	return PublisherFactory(amqpConfig, logger)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}
