// Package transports imports all built-in transports for auto-registration.
// Import this package to have all transports registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/drblury/eventpub/transport/aws"
	_ "github.com/drblury/eventpub/transport/channel"
	_ "github.com/drblury/eventpub/transport/http"
	_ "github.com/drblury/eventpub/transport/io"
	_ "github.com/drblury/eventpub/transport/jetstream"
	_ "github.com/drblury/eventpub/transport/kafka"
	_ "github.com/drblury/eventpub/transport/nats"
	_ "github.com/drblury/eventpub/transport/rabbitmq"
)
