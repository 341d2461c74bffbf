package netmon

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/ports"
)

var _ ports.Monitor = (*Monitor)(nil)

// Prober reports whether the backend is currently reachable.
type Prober func(ctx context.Context) bool

// TCPProber dials addr and treats a successful connection as online.
func TCPProber(addr string, timeout time.Duration) Prober {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}

// Monitor polls a Prober and notifies subscribers on every
// online/offline transition.
type Monitor struct {
	probe    Prober
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int

	cancel context.CancelFunc
	done   chan struct{}
}

func New(probe Prober, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   logger.With().Str("component", "netmon").Logger(),
		subs:     make(map[int]func(bool)),
	}
}

// Start probes once synchronously to seed the flag, then keeps polling
// in the background until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	m.set(m.probe(ctx))

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.set(m.probe(ctx))
			}
		}
	}()
}

func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) Subscribe(fn func(online bool)) func() {
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

func (m *Monitor) set(online bool) {
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

	m.logger.Info().Bool("online", online).Msg("connectivity changed")
	for _, fn := range fns {
		fn(online)
	}
}
