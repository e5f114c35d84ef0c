package memory

import (
	"sync"

	"github.com/artpar/datagate/ports"
)

// HandlerRegistry is an in-memory implementation of
// ports.HandlerRegistry. Handlers register once at startup, before
// requests are served.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ports.Handler
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]ports.Handler)}
}

// Register binds a handler reference to its implementation.
func (r *HandlerRegistry) Register(ref string, h ports.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[ref] = h
}

// Handler resolves a handler reference.
func (r *HandlerRegistry) Handler(ref string) (ports.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[ref]
	return h, ok
}
