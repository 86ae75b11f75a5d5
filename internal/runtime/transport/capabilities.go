// Package transport connects the publisher to a message broker. Brokers are
// built through the modular registry in github.com/drblury/eventpub/transport.
package transport

import (
	newtransport "github.com/drblury/eventpub/transport"
)

// Capabilities is an alias for the modular transport Capabilities.
type Capabilities = newtransport.Capabilities

// GetCapabilities returns the capabilities for a transport by name.
func GetCapabilities(transportName string) Capabilities {
	return newtransport.GetCapabilities(transportName)
}
