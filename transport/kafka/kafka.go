// Package kafka provides a Kafka transport for eventpub.
package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/eventpub/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

func init() {
	Register()
}

// Register registers the Kafka transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Build creates a new synchronous Kafka publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}

	return PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig(cfg),
			OTELEnabled:           true,
		},
		logger,
	)
}

func saramaConfig(cfg transport.Config) *sarama.Config {
	sc := kafka.DefaultSaramaSyncPublisherConfig()
	if id := cfg.GetKafkaClientID(); id != "" {
		sc.ClientID = id
	}
	sc.Producer.MaxMessageBytes = int(transport.KafkaCapabilities.MaxMessageSize)
	return sc
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}
