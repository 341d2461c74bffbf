package store

import (
	"context"
	"sync"

	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/ports"
)

var _ ports.Store = (*Memory)(nil)

// Memory keeps the queue state in process memory. Used as the failover
// fallback and in tests; state does not survive a restart.
type Memory struct {
	mu    sync.RWMutex
	state *domain.State
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) (domain.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return domain.EmptyState(), nil
	}
	return m.state.Clone(), nil
}

func (m *Memory) Save(ctx context.Context, state domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := state.Clone()
	m.state = &s
	return nil
}
