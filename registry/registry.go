// Package registry holds the dispatcher registration surface a group
// talks to while it is alive: dispatchers are registered on start and
// removed on stop. The real registry is usually an external, process-wide
// collaborator with its own synchronization; InMemory is a self-contained
// default, and Guarded wraps any backend with a circuit breaker so a
// flaky registry degrades to fast failures instead of slowing every group
// start and stop.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/sony/gobreaker"
)

// Dispatcher names one of a group's configured dispatch targets.
type Dispatcher string

// Registry is what a group registers its dispatchers with on start, and
// removes them from on stop.
type Registry interface {
	Register(ctx context.Context, path string, d Dispatcher) error
	Remove(ctx context.Context, path string, d Dispatcher) error
}

// InMemory is a process-local Registry, safe for concurrent use by many
// groups. It never fails.
type InMemory struct {
	mu         sync.Mutex
	registered map[string]map[Dispatcher]bool
}

// NewInMemory returns an empty InMemory registry.
func NewInMemory() *InMemory {
	return &InMemory{registered: make(map[string]map[Dispatcher]bool)}
}

func (r *InMemory) Register(_ context.Context, path string, d Dispatcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registered[path] == nil {
		r.registered[path] = make(map[Dispatcher]bool)
	}
	r.registered[path][d] = true
	return nil
}

func (r *InMemory) Remove(_ context.Context, path string, d Dispatcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.registered[path], d)
	return nil
}

// Has reports whether path is currently registered against d.
func (r *InMemory) Has(path string, d Dispatcher) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered[path][d]
}

// Guarded wraps a Registry with a circuit breaker. Once the breaker
// opens, calls fail immediately until the backend recovers.
type Guarded struct {
	inner Registry
	cb    *gobreaker.CircuitBreaker
}

// NewGuarded wraps inner with a circuit breaker named for logging.
func NewGuarded(name string, inner Registry) *Guarded {
	return &Guarded{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: name}),
	}
}

func (g *Guarded) Register(ctx context.Context, path string, d Dispatcher) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, g.inner.Register(ctx, path, d)
	})
	return wrapBreakerErr(err)
}

func (g *Guarded) Remove(ctx context.Context, path string, d Dispatcher) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, g.inner.Remove(ctx, path, d)
	})
	return wrapBreakerErr(err)
}

func wrapBreakerErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("registry: %w", err)
}
