package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

var (
	// ErrConfigRequired is returned by Build when no config is given.
	ErrConfigRequired = errors.New("transport: config is required")
	// ErrUnknownTransport is returned by Build for a PubSubSystem nobody registered.
	ErrUnknownTransport = errors.New("transport: unknown transport")
	// ErrNilPublisher is returned when a builder reports success without a publisher.
	ErrNilPublisher = errors.New("transport: builder returned no publisher")
)

type entry struct {
	build Builder
	caps  Capabilities
}

// Registry maps PubSubSystem names to publisher builders and their
// capabilities. Names are matched case-insensitively.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// DefaultRegistry is the registry the transport sub-packages register with.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds builder under name. Capabilities default to the name only;
// a later registration replaces an earlier one.
func (r *Registry) Register(name string, builder Builder) {
	r.RegisterWithCapabilities(name, builder, Capabilities{Name: normalizeName(name)})
}

// RegisterWithCapabilities adds builder under name together with the limits
// the publisher enforces before handing messages to it.
func (r *Registry) RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[normalizeName(name)] = entry{build: builder, caps: caps}
}

// GetCapabilities returns the capabilities registered for name. Unknown
// transports report a value carrying only the name, which allows any size.
func (r *Registry) GetCapabilities(name string) Capabilities {
	key := normalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[key]; ok {
		return e.caps
	}
	return Capabilities{Name: key}
}

// Build creates a publisher with the builder registered for
// cfg.GetPubSubSystem().
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	name := normalizeName(cfg.GetPubSubSystem())

	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownTransport, name, r.Names())
	}

	pub, err := e.build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build %s publisher: %w", name, err)
	}
	if pub == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilPublisher, name)
	}
	return pub, nil
}

// Names returns the registered transport names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[normalizeName(name)]
	return ok
}

// Register adds a builder to DefaultRegistry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// RegisterWithCapabilities adds a builder with capabilities to DefaultRegistry.
func RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(name, builder, caps)
}

// Build creates a publisher from DefaultRegistry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
