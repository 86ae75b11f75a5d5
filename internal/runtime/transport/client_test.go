package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/eventpub/internal/runtime/attributes"
	"github.com/drblury/eventpub/internal/runtime/config"
	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
	"github.com/drblury/eventpub/internal/runtime/schema"
	newtransport "github.com/drblury/eventpub/transport"
)

func testConfig() *config.Config {
	return &config.Config{
		ProjectID:    "demo",
		SchemaFile:   "unused.avsc",
		PubSubSystem: "channel",
		Topics:       map[string]string{"orders": "JSON", "audit": "BINARY", "broken": "XML"},
	}
}

// sharedChannel hands out one persistent GoChannel to every handle so tests
// can subscribe to what the handles publish.
type sharedChannel struct {
	pubSub *gochannel.GoChannel
	builds int
	mu     sync.Mutex
}

func newSharedChannel(t *testing.T) *sharedChannel {
	s := &sharedChannel{pubSub: gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})}
	t.Cleanup(func() { _ = s.pubSub.Close() })
	return s
}

func (s *sharedChannel) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds++
	return nopCloser{s.pubSub}, nil
}

type nopCloser struct{ message.Publisher }

func (nopCloser) Close() error { return nil }

func TestTopicPath(t *testing.T) {
	client, err := NewWatermillClient(testConfig(), nil, nil)
	require.NoError(t, err)

	path := client.TopicPath("orders")
	assert.Equal(t, TopicPath{Project: "demo", Topic: "orders"}, path)
	assert.Equal(t, "projects/demo/topics/orders", path.String())
}

func TestNewWatermillClientRequiresConfig(t *testing.T) {
	_, err := NewWatermillClient(nil, nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)
}

func TestTopicEncoding(t *testing.T) {
	client, err := NewWatermillClient(testConfig(), nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	enc, err := client.TopicEncoding(ctx, client.TopicPath("orders"))
	require.NoError(t, err)
	assert.Equal(t, schema.EncodingJSON, enc)

	enc, err = client.TopicEncoding(ctx, client.TopicPath("audit"))
	require.NoError(t, err)
	assert.Equal(t, schema.EncodingBinary, enc)

	_, err = client.TopicEncoding(ctx, client.TopicPath("missing"))
	assert.ErrorIs(t, err, errspkg.ErrTopicNotFound)

	_, err = client.TopicEncoding(ctx, TopicPath{Project: "other", Topic: "orders"})
	assert.ErrorIs(t, err, errspkg.ErrTopicNotFound)

	_, err = client.TopicEncoding(ctx, client.TopicPath("broken"))
	assert.ErrorIs(t, err, errspkg.ErrConfiguration)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = client.TopicEncoding(cancelled, client.TopicPath("orders"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenHandle(t *testing.T) {
	t.Run("unknown topic never builds a publisher", func(t *testing.T) {
		shared := newSharedChannel(t)
		client, err := NewWatermillClient(testConfig(), shared, nil)
		require.NoError(t, err)

		_, err = client.OpenHandle(context.Background(), client.TopicPath("missing"))
		assert.ErrorIs(t, err, errspkg.ErrTopicNotFound)
		assert.Zero(t, shared.builds)
	})

	t.Run("factory failure is a transport error", func(t *testing.T) {
		failing := FactoryFunc(func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("dial tcp: refused")
		})
		client, err := NewWatermillClient(testConfig(), failing, nil)
		require.NoError(t, err)

		_, err = client.OpenHandle(context.Background(), client.TopicPath("orders"))
		assert.ErrorIs(t, err, errspkg.ErrTransport)
		assert.ErrorContains(t, err, "refused")
	})

	t.Run("default factory builds the configured transport", func(t *testing.T) {
		client, err := NewWatermillClient(testConfig(), nil, nil)
		require.NoError(t, err)

		h, err := client.OpenHandle(context.Background(), client.TopicPath("orders"))
		require.NoError(t, err)
		assert.NoError(t, h.Close())
		assert.Equal(t, "channel", client.Capabilities().Name)
	})
}

func TestHandlePublish(t *testing.T) {
	shared := newSharedChannel(t)
	client, err := NewWatermillClient(testConfig(), shared, nil)
	require.NoError(t, err)
	ctx := context.Background()

	messages, err := shared.pubSub.Subscribe(ctx, "orders")
	require.NoError(t, err)

	h, err := client.OpenHandle(ctx, client.TopicPath("orders"))
	require.NoError(t, err)

	attrs := attributes.New(attributes.KeyEncoding, "JSON", "tenant", "acme")
	id, err := h.Publish(ctx, []byte(`{"orderId":42}`), attrs)
	require.NoError(t, err)
	_, err = ulid.Parse(id)
	require.NoError(t, err, "message id should be a ULID")

	select {
	case msg := <-messages:
		assert.Equal(t, id, msg.UUID)
		assert.Equal(t, `{"orderId":42}`, string(msg.Payload))
		assert.Equal(t, "JSON", msg.Metadata.Get(attributes.KeyEncoding))
		assert.Equal(t, "acme", msg.Metadata.Get("tenant"))
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	_, err = h.Publish(ctx, []byte(`{}`), nil)
	assert.ErrorIs(t, err, errspkg.ErrPublisherClosed)
}

type brokerIDPublisher struct{}

func (brokerIDPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, m := range messages {
		m.Metadata.Set(newtransport.MetadataMessageID, "17")
	}
	return nil
}

func (brokerIDPublisher) Close() error { return nil }

func TestHandlePublishUsesBrokerMessageID(t *testing.T) {
	factory := FactoryFunc(func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return brokerIDPublisher{}, nil
	})
	client, err := NewWatermillClient(testConfig(), factory, nil)
	require.NoError(t, err)

	h, err := client.OpenHandle(context.Background(), client.TopicPath("audit"))
	require.NoError(t, err)

	id, err := h.Publish(context.Background(), []byte{0x01}, nil)
	require.NoError(t, err)
	assert.Equal(t, "17", id)
}

type blockingPublisher struct {
	release chan struct{}
}

func (b blockingPublisher) Publish(topic string, messages ...*message.Message) error {
	<-b.release
	return nil
}

func (b blockingPublisher) Close() error { return nil }

type failingPublisher struct{}

func (failingPublisher) Publish(topic string, messages ...*message.Message) error {
	return errors.New("broker unavailable")
}

func (failingPublisher) Close() error { return nil }

func TestHandlePublishErrors(t *testing.T) {
	t.Run("honours context deadline", func(t *testing.T) {
		blocking := blockingPublisher{release: make(chan struct{})}
		defer close(blocking.release)
		factory := FactoryFunc(func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return blocking, nil
		})
		client, err := NewWatermillClient(testConfig(), factory, nil)
		require.NoError(t, err)
		h, err := client.OpenHandle(context.Background(), client.TopicPath("orders"))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = h.Publish(ctx, []byte(`{}`), nil)
		assert.ErrorIs(t, err, errspkg.ErrTransport)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("wraps broker failures", func(t *testing.T) {
		factory := FactoryFunc(func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return failingPublisher{}, nil
		})
		client, err := NewWatermillClient(testConfig(), factory, nil)
		require.NoError(t, err)
		h, err := client.OpenHandle(context.Background(), client.TopicPath("orders"))
		require.NoError(t, err)

		_, err = h.Publish(context.Background(), []byte(`{}`), nil)
		assert.ErrorIs(t, err, errspkg.ErrTransport)
		assert.ErrorContains(t, err, "broker unavailable")
	})
}
