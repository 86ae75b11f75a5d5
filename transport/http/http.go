// Package http provides an HTTP transport for eventpub. Each message is
// POSTed to the publisher URL joined with the topic name.
package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/eventpub/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// DefaultTimeout bounds a single HTTP publish.
const DefaultTimeout = 30 * time.Second

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

func init() {
	Register()
}

// Register registers the HTTP transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Build creates a new HTTP publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	publisherURL := cfg.GetHTTPPublisherURL()
	if publisherURL == "" {
		return nil, errors.New("http: publisher URL is required")
	}
	if !strings.HasSuffix(publisherURL, "/") {
		publisherURL += "/"
	}

	return PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				return http.DefaultMarshalMessageFunc(publisherURL+topic, msg)
			},
			Client: &nethttp.Client{Timeout: DefaultTimeout},
		},
		logger,
	)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
