package migration

import (
	"context"
	"slices"
	"sync"

	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
)

// Handler transforms rows read through the input facades into the output
// facades. It is called once per rule run and decides itself how inputs
// and outputs pair up. Returning an error aborts the rule.
type Handler interface {
	Apply(ctx context.Context, inputs, outputs []adapter.Facade) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, inputs, outputs []adapter.Facade) error

// Apply calls f.
func (f HandlerFunc) Apply(ctx context.Context, inputs, outputs []adapter.Facade) error {
	return f(ctx, inputs, outputs)
}

// Registry maps rule names to handlers compiled into the binary.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler registered for name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered rule names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
