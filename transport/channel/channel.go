// Package channel provides an in-memory Go channel transport for eventpub.
// This transport is useful for testing and local development.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/eventpub/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// Factory allows overriding the channel creation, for example to share one
// GoChannel between the publisher and a test subscriber.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) message.Publisher {
	return gochannel.NewGoChannel(cfg, logger)
}

func init() {
	Register()
}

// Register registers the channel transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new Go channel publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return Factory(gochannel.Config{}, logger), nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
