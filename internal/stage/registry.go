package stage

import (
	"context"
	"fmt"
)

// Registry maps stage kinds to their invocable handlers.
type Registry struct {
	handlers map[Kind]Handler
}

// NewRegistry builds a registry and rejects unknown kinds.
func NewRegistry(handlers map[Kind]Handler) (*Registry, error) {
	reg := &Registry{handlers: make(map[Kind]Handler, len(handlers))}
	for kind, handler := range handlers {
		if _, ok := ParseKind(string(kind)); !ok {
			return nil, fmt.Errorf("stage registry: unknown kind %q", kind)
		}
		if handler == nil {
			return nil, fmt.Errorf("stage registry: nil handler for %q", kind)
		}
		reg.handlers[kind] = handler
	}
	return reg, nil
}

// Handler returns the registered handler for a kind.
func (r *Registry) Handler(kind Kind) (Handler, bool) {
	handler, ok := r.handlers[kind]
	return handler, ok
}

// Kinds returns the kinds that have registered handlers.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.handlers))
	for _, kind := range allKinds {
		if _, ok := r.handlers[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Health reports readiness for every registered handler.
func (r *Registry) Health(ctx context.Context) []Health {
	checks := make([]Health, 0, len(r.handlers))
	for _, kind := range r.Kinds() {
		checks = append(checks, r.handlers[kind].HealthCheck(ctx))
	}
	return checks
}
