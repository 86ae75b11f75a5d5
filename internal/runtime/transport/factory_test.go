package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/eventpub/internal/runtime/config"
	"github.com/drblury/eventpub/internal/runtime/logging"
)

func testLogger() watermill.LoggerAdapter {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	serviceLogger := logging.NewSlogServiceLogger(slogger)
	return logging.NewWatermillAdapter(serviceLogger)
}

func TestDefaultFactory_Build_Channel(t *testing.T) {
	pub, err := DefaultFactory().Build(context.Background(), &config.Config{PubSubSystem: "channel"}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.NoError(t, pub.Close())
}

func TestDefaultFactory_Build_NilConfig(t *testing.T) {
	_, err := DefaultFactory().Build(context.Background(), nil, testLogger())
	assert.ErrorContains(t, err, "config is required")
}

func TestDefaultFactory_Build_InvalidTransport(t *testing.T) {
	_, err := DefaultFactory().Build(context.Background(), &config.Config{PubSubSystem: "invalid-transport"}, testLogger())
	assert.ErrorContains(t, err, "unknown transport")
}

func TestGetCapabilities(t *testing.T) {
	assert.Equal(t, "channel", GetCapabilities("channel").Name)
	assert.Equal(t, int64(262144), GetCapabilities("aws").MaxMessageSize)
}
