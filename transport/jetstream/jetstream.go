// Package jetstream provides a NATS JetStream transport for eventpub. Unlike
// the other transports it reports the broker-assigned stream sequence as the
// message id.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/eventpub/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats-jetstream"

const (
	// DefaultStreamName is used when no stream is configured.
	DefaultStreamName = "EVENTPUB"

	// DefaultMaxAge is the retention of the stream created on start.
	DefaultMaxAge = 7 * 24 * time.Hour
)

// ErrClosed is returned when publishing through a closed Publisher.
var ErrClosed = errors.New("jetstream: publisher is closed")

func init() {
	Register()
}

// Register registers the JetStream transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Build creates a new NATS JetStream publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return New(Config{
		URL:        cfg.GetNATSURL(),
		StreamName: cfg.GetNATSStream(),
	}, logger)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds NATS JetStream-specific configuration.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the name of the JetStream stream to use.
	// If empty, defaults to DefaultStreamName.
	StreamName string

	// Replicas is the number of stream replicas (for clustering).
	Replicas int
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	return c
}

// streamPublisher is the part of nats.JetStreamContext the publisher uses.
type streamPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher publishes to subjects {StreamName}.{topic}.
type Publisher struct {
	nc     *nats.Conn
	js     streamPublisher
	config Config
	logger watermill.LoggerAdapter

	closedMu sync.RWMutex
	closed   bool
}

// New connects to NATS and makes sure the stream exists.
func New(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, errors.New("jetstream: URL is required")
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("eventpub"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(js, cfg, logger); err != nil {
		nc.Close()
		return nil, err
	}

	return &Publisher{nc: nc, js: js, config: cfg, logger: logger}, nil
}

func newWithStream(js streamPublisher, cfg Config, logger watermill.LoggerAdapter) *Publisher {
	return &Publisher{js: js, config: cfg.withDefaults(), logger: logger}
}

func ensureStream(js nats.JetStreamManager, cfg Config, logger watermill.LoggerAdapter) error {
	streamCfg := &nats.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{cfg.StreamName + ".>"},
		MaxAge:    DefaultMaxAge,
		Replicas:  cfg.Replicas,
		Retention: nats.LimitsPolicy,
	}

	if _, err := js.AddStream(streamCfg); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream %s: %w", cfg.StreamName, err)
	}

	if _, err := js.UpdateStream(streamCfg); err != nil && logger != nil {
		logger.Info("JetStream stream exists with a different config", watermill.LogFields{
			"stream": cfg.StreamName,
			"error":  err.Error(),
		})
	}
	return nil
}

// Publish publishes messages to the stream. On success each message carries
// its stream sequence under transport.MetadataMessageID.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.closedMu.RLock()
	defer p.closedMu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	subject := p.Subject(topic)

	for _, msg := range messages {
		headers := nats.Header{}
		for k, v := range msg.Metadata {
			headers.Set(k, v)
		}

		natsMsg := &nats.Msg{
			Subject: subject,
			Data:    msg.Payload,
			Header:  headers,
		}

		ack, err := p.js.PublishMsg(natsMsg, nats.MsgId(msg.UUID), nats.Context(msg.Context()))
		if err != nil {
			return fmt.Errorf("failed to publish to JetStream: %w", err)
		}
		msg.Metadata.Set(transport.MetadataMessageID, strconv.FormatUint(ack.Sequence, 10))
	}

	return nil
}

// Subject returns the NATS subject used for topic.
func (p *Publisher) Subject(topic string) string {
	return p.config.StreamName + "." + topic
}

// Close closes the NATS connection.
func (p *Publisher) Close() error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
