package ports

import (
	"context"

	"github.com/openann19/offlineq/internal/domain"
)

// Store durably holds the serialized queue state in a single slot.
type Store interface {
	// Load returns the last saved state. A missing or unreadable value
	// yields an empty state, not an error; only I/O failures propagate.
	Load(ctx context.Context) (domain.State, error)
	Save(ctx context.Context, state domain.State) error
}

// Monitor tracks backend connectivity and notifies on transitions.
type Monitor interface {
	Online() bool
	// Subscribe registers fn to be called with the new connectivity value
	// on every transition. The returned function removes the registration.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Dispatcher routes an action to the executor registered for its type
// and performs the real side effect.
type Dispatcher interface {
	Dispatch(ctx context.Context, a domain.Action) error
}
