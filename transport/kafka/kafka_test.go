package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/eventpub/internal/runtime/config"
	"github.com/drblury/eventpub/transport"
)

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	transport.DefaultRegistry = transport.NewRegistry()
	defer func() { transport.DefaultRegistry = original }()

	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "kafka", caps.Name)
	assert.True(t, caps.SupportsTracing)
	assert.Equal(t, int64(1048576), caps.MaxMessageSize)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.KafkaCapabilities, Capabilities())
}

func TestTransportName(t *testing.T) {
	assert.Equal(t, "kafka", TransportName)
}

func TestBuild(t *testing.T) {
	t.Run("creates publisher with mocked factory", func(t *testing.T) {
		originalPubFactory := PublisherFactory
		defer func() { PublisherFactory = originalPubFactory }()

		mockPub := &mockPublisher{}
		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
			assert.True(t, cfg.OTELEnabled)
			require.NotNil(t, cfg.OverwriteSaramaConfig)
			assert.Equal(t, "eventpub-test", cfg.OverwriteSaramaConfig.ClientID)
			assert.True(t, cfg.OverwriteSaramaConfig.Producer.Return.Successes)
			assert.Equal(t, 1048576, cfg.OverwriteSaramaConfig.Producer.MaxMessageBytes)
			return mockPub, nil
		}

		cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaClientID: "eventpub-test"}
		pub, err := Build(context.Background(), cfg, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Equal(t, mockPub, pub)
	})

	t.Run("keeps sarama client id default", func(t *testing.T) {
		sc := saramaConfig(&config.Config{})
		assert.NotEmpty(t, sc.ClientID)
	})

	t.Run("requires brokers", func(t *testing.T) {
		_, err := Build(context.Background(), &config.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "brokers are required")
	})

	t.Run("returns error when publisher factory fails", func(t *testing.T) {
		originalPubFactory := PublisherFactory
		defer func() { PublisherFactory = originalPubFactory }()

		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}}
		_, err := Build(context.Background(), cfg, watermill.NopLogger{})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "publisher error")
	})
}

type mockPublisher struct{}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
func (m *mockPublisher) Close() error                                             { return nil }
