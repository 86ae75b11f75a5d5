package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/eventpub/internal/runtime/attributes"
	"github.com/drblury/eventpub/internal/runtime/config"
	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
	idspkg "github.com/drblury/eventpub/internal/runtime/ids"
	"github.com/drblury/eventpub/internal/runtime/schema"
	newtransport "github.com/drblury/eventpub/transport"
)

// TopicPath is the fully qualified name of a topic.
type TopicPath struct {
	Project string
	Topic   string
}

func (p TopicPath) String() string {
	return "projects/" + p.Project + "/topics/" + p.Topic
}

// Handle publishes to a single topic.
type Handle interface {
	// Publish sends data with attrs and returns the broker message id.
	Publish(ctx context.Context, data []byte, attrs attributes.Attributes) (string, error)
	Close() error
}

// Client is what the publisher needs from a message broker.
type Client interface {
	TopicPath(topicID string) TopicPath
	// TopicEncoding fails with ErrTopicNotFound for unknown topics.
	TopicEncoding(ctx context.Context, path TopicPath) (schema.Encoding, error)
	OpenHandle(ctx context.Context, path TopicPath) (Handle, error)
	Capabilities() Capabilities
}

// WatermillClient opens one Watermill publisher per topic handle. Topic
// encodings come from Config.Topics.
type WatermillClient struct {
	conf    *config.Config
	factory Factory
	logger  watermill.LoggerAdapter
}

// NewWatermillClient returns a client for conf. A nil factory selects
// DefaultFactory.
func NewWatermillClient(conf *config.Config, factory Factory, logger watermill.LoggerAdapter) (*WatermillClient, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if factory == nil {
		factory = DefaultFactory()
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &WatermillClient{conf: conf, factory: factory, logger: logger}, nil
}

func (c *WatermillClient) TopicPath(topicID string) TopicPath {
	return TopicPath{Project: c.conf.ProjectID, Topic: topicID}
}

func (c *WatermillClient) TopicEncoding(ctx context.Context, path TopicPath) (schema.Encoding, error) {
	if err := ctx.Err(); err != nil {
		return schema.EncodingUnspecified, err
	}
	if path.Project != c.conf.ProjectID {
		return schema.EncodingUnspecified, fmt.Errorf("%w: %s", errspkg.ErrTopicNotFound, path)
	}
	enc, ok, err := c.conf.TopicEncoding(path.Topic)
	if !ok {
		return schema.EncodingUnspecified, fmt.Errorf("%w: %s", errspkg.ErrTopicNotFound, path)
	}
	if err != nil {
		return schema.EncodingUnspecified, fmt.Errorf("topic %s: %w", path, err)
	}
	return enc, nil
}

func (c *WatermillClient) OpenHandle(ctx context.Context, path TopicPath) (Handle, error) {
	if _, err := c.TopicEncoding(ctx, path); err != nil {
		return nil, err
	}
	pub, err := c.factory.Build(ctx, c.conf, c.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", errspkg.ErrTransport, path, err)
	}
	c.logger.Debug("Opened topic handle", watermill.LogFields{
		"topic":     path.String(),
		"transport": c.conf.PubSubSystem,
	})
	return &watermillHandle{topic: path.Topic, pub: pub}, nil
}

func (c *WatermillClient) Capabilities() Capabilities {
	return GetCapabilities(c.conf.PubSubSystem)
}

type watermillHandle struct {
	topic string
	pub   message.Publisher

	mu     sync.RWMutex
	closed bool
}

type publishResult struct {
	id  string
	err error
}

// Publish hands the message to the Watermill publisher and waits for it or
// for ctx, whichever comes first.
func (h *watermillHandle) Publish(ctx context.Context, data []byte, attrs attributes.Attributes) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return "", errspkg.ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", errspkg.ErrTransport, err)
	}

	msg := message.NewMessage(idspkg.NewMessageID(), data)
	msg.Metadata = attributes.ToWatermill(attrs)
	msg.SetContext(ctx)

	done := make(chan publishResult, 1)
	go func() {
		if err := h.pub.Publish(h.topic, msg); err != nil {
			done <- publishResult{err: err}
			return
		}
		done <- publishResult{id: newtransport.MessageID(msg)}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("%w: %w", errspkg.ErrTransport, res.err)
		}
		return res.id, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", errspkg.ErrTransport, ctx.Err())
	}
}

func (h *watermillHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.pub.Close()
}
