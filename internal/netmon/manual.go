package netmon

import (
	"sync"

	"github.com/openann19/offlineq/internal/ports"
)

var _ ports.Monitor = (*Manual)(nil)

// Manual is a monitor whose state is fed by the caller, for hosts that
// already have their own connectivity signal and for tests.
type Manual struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

func NewManual(online bool) *Manual {
	return &Manual{online: online, subs: make(map[int]func(bool))}
}

func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set updates connectivity and notifies subscribers on a transition.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

func (m *Manual) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
