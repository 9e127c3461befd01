package transport

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"

	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
)

// backend pairs a builder with what the built transport guarantees.
type backend struct {
	caps  Capabilities
	build Builder
}

// Registry maps event backend names to their builders. Names are matched
// without regard to case or surrounding space.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]backend
}

// DefaultRegistry is the registry transport packages register with from init.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]backend)}
}

func canonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds build under caps.Name, replacing any earlier backend of that
// name. It panics when caps carries no name.
func (r *Registry) Register(caps Capabilities, build Builder) {
	name := canonicalName(caps.Name)
	if name == "" || build == nil {
		panic("transport: Register needs a named capability set and a builder")
	}
	caps.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = backend{caps: caps, build: build}
}

// Lookup returns the capabilities of the backend registered under name.
func (r *Registry) Lookup(name string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[canonicalName(name)]
	return b.caps, ok
}

// Open builds the backend selected by cfg.GetEventTransport and returns the
// transport with its capabilities. A backend that yields no publisher is an
// error, since events cannot leave the process without one.
func (r *Registry) Open(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, Capabilities, error) {
	if cfg == nil {
		return Transport{}, Capabilities{}, fmt.Errorf("%w: transport config", errspkg.ErrConfigRequired)
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	name := canonicalName(cfg.GetEventTransport())
	r.mu.RLock()
	b, ok := r.backends[name]
	r.mu.RUnlock()
	if !ok {
		return Transport{}, Capabilities{}, fmt.Errorf("%w: %q (registered: %s)",
			errspkg.ErrTransportNotRegistered, name, strings.Join(r.Names(), ", "))
	}

	tr, err := b.build(ctx, cfg, logger)
	if err != nil {
		return Transport{}, Capabilities{}, fmt.Errorf("%s: %w", name, err)
	}
	if tr.Publisher == nil {
		_ = tr.Close()
		return Transport{}, Capabilities{}, fmt.Errorf("%s: backend built no publisher", name)
	}
	return tr, b.caps, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.backends))
}

// Register adds a backend to the default registry.
func Register(caps Capabilities, build Builder) {
	DefaultRegistry.Register(caps, build)
}

// Lookup returns capabilities from the default registry.
func Lookup(name string) (Capabilities, bool) {
	return DefaultRegistry.Lookup(name)
}

// Open builds a transport using the default registry.
func Open(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, Capabilities, error) {
	return DefaultRegistry.Open(ctx, cfg, logger)
}
