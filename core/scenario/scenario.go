// Package scenario defines named cost-sequence sources and their registry.
// Sources produce scenarios; they never partition them.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cu-planner/core/types"
	"cu-planner/internal/errors"
)

// Source produces a scenario on demand
type Source interface {
	// Name returns the scenario identifier
	Name() string

	// Description explains what the scenario models
	Description() string

	// Load builds the scenario
	Load(ctx context.Context) (*types.Scenario, error)
}

// Registry manages scenario sources
type Registry interface {
	// Register adds a source to the registry
	Register(source Source) error

	// Get returns a source by name
	Get(name string) (Source, bool)

	// GetAll returns all sources in registration order
	GetAll() []Source

	// Load builds the named scenario
	Load(ctx context.Context, name string) (*types.Scenario, error)
}

// DefaultRegistry is the default Registry implementation
type DefaultRegistry struct {
	mu      sync.RWMutex
	sources map[string]Source
	order   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		sources: make(map[string]Source),
		order:   make([]string, 0),
	}
}

// Register adds a source to the registry
func (r *DefaultRegistry) Register(source Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := source.Name()
	if name == "" {
		return errors.Input("scenario name is empty")
	}
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("scenario already registered: %s", name)
	}

	r.sources[name] = source
	r.order = append(r.order, name)
	return nil
}

// Get returns a source by name
func (r *DefaultRegistry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.sources[name]
	return source, ok
}

// GetAll returns all sources in registration order
func (r *DefaultRegistry) GetAll() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		sources = append(sources, r.sources[name])
	}
	return sources
}

// Names returns registered names sorted alphabetically
func (r *DefaultRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Load builds the named scenario
func (r *DefaultRegistry) Load(ctx context.Context, name string) (*types.Scenario, error) {
	source, ok := r.Get(name)
	if !ok {
		return nil, errors.NotFound("scenario", name)
	}

	s, err := source.Load(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeOf(err), err, "loading scenario %s", name)
	}
	return s, nil
}

var (
	defaultRegistry     *DefaultRegistry
	defaultRegistryOnce sync.Once
)

// GetDefault returns the default registry, seeded with the built-in scenarios
func GetDefault() *DefaultRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, source := range Builtins() {
			// built-in names are unique
			_ = defaultRegistry.Register(source)
		}
	})
	return defaultRegistry
}
