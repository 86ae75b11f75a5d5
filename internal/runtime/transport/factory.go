package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/eventpub/internal/runtime/config"
	newtransport "github.com/drblury/eventpub/transport"

	// Import all transport packages to register them.
	_ "github.com/drblury/eventpub/transport/transports"
)

// Factory abstracts how a Watermill publisher is created for a topic handle.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the built-in factory that uses the modular
// transport registry.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if conf == nil {
		return nil, newtransport.ErrConfigRequired
	}
	return newtransport.Build(ctx, conf, logger)
}
