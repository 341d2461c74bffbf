package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/ports"
)

var _ ports.Dispatcher = (*Registry)(nil)

// Handler performs the real side effect for one action type. The queue
// never inspects the payload; the handler owns its shape and its own
// timeout behavior.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Registry maps action types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.ActionType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.ActionType]Handler)}
}

// Register binds a handler to an action type, replacing any previous one.
func (r *Registry) Register(t domain.ActionType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

func (r *Registry) Dispatch(ctx context.Context, a domain.Action) error {
	r.mu.RLock()
	h, ok := r.handlers[a.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no executor registered for action type %q", a.Type)
	}
	return h(ctx, a.Payload)
}
