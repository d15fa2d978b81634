package portaros

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrCapabilityUnbound is returned when a container has no binding for a
// requested identifier.
var ErrCapabilityUnbound = errors.New("capability not bound in container")

// Container is the capability container the dispatcher resolves dependencies
// from. Get returns the shared instance for an identifier; Make constructs a
// fresh instance, passing extra construction parameters through to the
// factory. The dispatch core only consumes this interface — applications are
// free to adapt their own container behind it.
type Container interface {
	Get(id string) (any, error)
	Make(id string, params map[string]any) (any, error)
}

// Factory builds an instance of a bound capability. The container passes
// itself so factories can resolve their own dependencies, and the params map
// carries the extras given to Make (nil for Get).
type Factory func(c Container, params map[string]any) (any, error)

// BasicContainer is a small capability container sufficient for the dispatch
// core: factories registered by identifier, shared instances memoised on first
// Get. It is safe for concurrent use.
type BasicContainer struct {
	mu        sync.RWMutex
	factories map[string]Factory
	shared    map[string]any
}

var _ Container = (*BasicContainer)(nil)

// NewContainer creates an empty BasicContainer.
func NewContainer() *BasicContainer {
	return &BasicContainer{
		factories: map[string]Factory{},
		shared:    map[string]any{},
	}
}

// Provide binds a factory to an identifier, replacing any previous binding.
func (c *BasicContainer) Provide(id string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[id] = factory
	delete(c.shared, id)
}

// ProvideValue binds an already-constructed instance to an identifier.
func (c *BasicContainer) ProvideValue(id string, value any) {
	c.Provide(id, func(Container, map[string]any) (any, error) {
		return value, nil
	})
}

// Get returns the shared instance for an identifier, constructing it on first
// use. Concurrent first-use races may build twice; the last result wins, which
// is harmless for the shared-instance contract.
func (c *BasicContainer) Get(id string) (any, error) {
	c.mu.RLock()
	if instance, ok := c.shared[id]; ok {
		c.mu.RUnlock()
		return instance, nil
	}
	factory, ok := c.factories[id]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityUnbound, id)
	}

	instance, err := factory(c, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", id, err)
	}

	c.mu.Lock()
	c.shared[id] = instance
	c.mu.Unlock()
	return instance, nil
}

// Make constructs a fresh instance for an identifier with extra construction
// parameters. Results are never memoised.
func (c *BasicContainer) Make(id string, params map[string]any) (any, error) {
	c.mu.RLock()
	factory, ok := c.factories[id]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityUnbound, id)
	}

	instance, err := factory(c, params)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", id, err)
	}
	return instance, nil
}

// CapabilityID derives the container identifier for a value's type. Pass a
// nil pointer to name an interface capability:
//
//	container.ProvideValue(portaros.CapabilityID((*mail.Sender)(nil)), sender)
//
// The argument binder uses the same derivation to resolve injected
// parameters, so instances bound under CapabilityID are found without any
// further registration.
func CapabilityID(value any) string {
	return typeCapabilityID(reflect.TypeOf(value))
}

func typeCapabilityID(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
