// Package nats provides a NATS Core transport for eventpub.
package nats

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/eventpub/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

func init() {
	Register()
}

// Register registers the NATS transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Build creates a new NATS Core publisher. JetStream is disabled; use the
// nats-jetstream transport for persisted subjects.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	url := cfg.GetNATSURL()
	if url == "" {
		return nil, errors.New("nats: URL is required")
	}

	return PublisherFactory(
		nats.PublisherConfig{
			URL:         url,
			Marshaler:   &nats.NATSMarshaler{},
			NatsOptions: []nc.Option{nc.Name("eventpub")},
			JetStream:   nats.JetStreamConfig{Disabled: true},
		},
		logger,
	)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
