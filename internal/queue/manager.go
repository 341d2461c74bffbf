package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/metrics"
	"github.com/openann19/offlineq/internal/ports"
	"github.com/openann19/offlineq/pkg/backoff"
)

// Options tunes a Manager. Zero values fall back to defaults.
type Options struct {
	// DefaultMaxRetries applies when Enqueue is called with maxRetries <= 0.
	DefaultMaxRetries int
	// Retry spaces follow-up drains when a pass leaves pending actions.
	Retry  backoff.Policy
	Logger zerolog.Logger
}

// Manager is the enqueue/drain/retry state machine. State is loaded
// lazily from the store on first use and written back after every
// transition; store failures degrade to in-memory operation.
//
// Exactly one drain pass runs at a time, guarded by the persisted
// Processing flag. A pass that ends with eligible pending actions
// (deferred retries, actions enqueued mid-pass) schedules a follow-up
// drain after an exponential backoff delay rather than busy-looping.
type Manager struct {
	store    ports.Store
	monitor  ports.Monitor
	dispatch ports.Dispatcher
	opts     Options

	mu          sync.Mutex
	state       domain.State
	loaded      bool
	closed      bool
	streak      int
	followTimer *time.Timer
}

func NewManager(store ports.Store, monitor ports.Monitor, dispatcher ports.Dispatcher, opts Options) *Manager {
	if opts.DefaultMaxRetries <= 0 {
		opts.DefaultMaxRetries = 3
	}
	if opts.Retry.Base <= 0 {
		opts.Retry.Base = 500 * time.Millisecond
	}
	if opts.Retry.Max <= 0 {
		opts.Retry.Max = 30 * time.Second
	}
	opts.Logger = opts.Logger.With().Str("component", "queue").Logger()
	return &Manager{
		store:    store,
		monitor:  monitor,
		dispatch: dispatcher,
		opts:     opts,
	}
}

// Enqueue appends a new pending action and returns its id immediately.
// It never fails: a store write error is logged and the action still
// lives in memory for the session. If currently online, a drain attempt
// is kicked off in the background.
func (m *Manager) Enqueue(ctx context.Context, t domain.ActionType, payload json.RawMessage, maxRetries int) string {
	if maxRetries <= 0 {
		maxRetries = m.opts.DefaultMaxRetries
	}
	a := domain.Action{
		ID:         uuid.NewString(),
		Type:       t,
		Payload:    payload,
		Timestamp:  time.Now(),
		MaxRetries: maxRetries,
		Status:     domain.StatusPending,
	}

	m.mu.Lock()
	m.ensureLoadedLocked(ctx)
	m.state.Actions = append(m.state.Actions, a)
	m.persistLocked(ctx)
	m.mu.Unlock()

	metrics.IncEnqueued(string(t))
	m.opts.Logger.Debug().Str("id", a.ID).Str("type", string(t)).Msg("action enqueued")

	if m.monitor.Online() {
		go m.Drain(context.Background())
	}
	return a.ID
}

// Drain runs one pass over the actions that were pending when the pass
// started, in enqueue order. It is a no-op when offline, when another
// pass is running, or when nothing is eligible, so it is safe to call
// speculatively. An action that fails mid-pass is deferred to the next
// pass, never retried within the same one.
func (m *Manager) Drain(ctx context.Context) {
	m.mu.Lock()
	m.ensureLoadedLocked(ctx)
	if m.closed || m.state.Processing || !m.monitor.Online() {
		m.mu.Unlock()
		return
	}
	ids := m.pendingIDsLocked()
	if len(ids) == 0 {
		m.mu.Unlock()
		return
	}
	m.state.Processing = true
	m.persistLocked(ctx)
	m.mu.Unlock()

	for _, id := range ids {
		m.attempt(ctx, id)
	}

	m.mu.Lock()
	m.state.Processing = false
	m.persistLocked(ctx)
	if len(m.pendingIDsLocked()) > 0 {
		m.scheduleFollowUpLocked()
	} else {
		m.streak = 0
	}
	m.mu.Unlock()

	metrics.IncDrainPass()
}

func (m *Manager) attempt(ctx context.Context, id string) {
	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 || m.state.Actions[idx].Status != domain.StatusPending {
		m.mu.Unlock()
		return
	}
	m.state.Actions[idx].Status = domain.StatusProcessing
	m.persistLocked(ctx)
	act := m.state.Actions[idx]
	m.mu.Unlock()

	err := m.dispatch.Dispatch(ctx, act)

	m.mu.Lock()
	defer m.mu.Unlock()
	idx = m.indexLocked(id)
	if idx < 0 {
		// Cleared while executing; nothing left to record.
		return
	}
	if err == nil {
		m.state.Actions = append(m.state.Actions[:idx], m.state.Actions[idx+1:]...)
		metrics.IncDelivered(string(act.Type))
		m.opts.Logger.Debug().Str("id", id).Str("type", string(act.Type)).Msg("action delivered")
	} else {
		a := &m.state.Actions[idx]
		a.Retries++
		if a.Retries < a.MaxRetries {
			a.Status = domain.StatusPending
			metrics.IncRetried(string(act.Type))
			m.opts.Logger.Warn().Err(err).Str("id", id).Int("retries", a.Retries).
				Msg("delivery failed, will retry on next drain")
		} else {
			a.Status = domain.StatusFailed
			metrics.IncFailed(string(act.Type))
			m.opts.Logger.Error().Err(err).Str("id", id).Int("retries", a.Retries).
				Msg("delivery failed terminally, manual retry required")
		}
	}
	m.persistLocked(ctx)
}

// RetryFailed revives every terminally failed action with a fresh retry
// budget and triggers one drain attempt.
func (m *Manager) RetryFailed(ctx context.Context) {
	m.mu.Lock()
	m.ensureLoadedLocked(ctx)
	changed := false
	for i := range m.state.Actions {
		if m.state.Actions[i].Status == domain.StatusFailed {
			m.state.Actions[i].Status = domain.StatusPending
			m.state.Actions[i].Retries = 0
			changed = true
		}
	}
	if changed {
		m.persistLocked(ctx)
	}
	m.mu.Unlock()

	m.Drain(ctx)
}

// Status is a pure read; pending includes actions currently processing.
func (m *Manager) Status(ctx context.Context) domain.StatusCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoadedLocked(ctx)
	return m.state.Counts()
}

// Clear replaces the state with an empty one unconditionally.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoadedLocked(ctx)
	m.state = domain.EmptyState()
	m.persistLocked(ctx)
	m.opts.Logger.Info().Msg("queue cleared")
}

// Close stops any scheduled follow-up drain. In-flight passes finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	t := m.followTimer
	m.followTimer = nil
	m.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

func (m *Manager) ensureLoadedLocked(ctx context.Context) {
	if m.loaded {
		return
	}
	state, err := m.store.Load(ctx)
	if err != nil {
		m.opts.Logger.Warn().Err(err).Msg("load queue state failed, starting empty")
		state = domain.EmptyState()
	}
	// A persisted true flag means a previous run died mid-drain.
	state.Processing = false
	m.state = state
	m.loaded = true
	counts := m.state.Counts()
	metrics.SetQueueDepth(counts.Pending, counts.Failed)
}

func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.store.Save(ctx, m.state); err != nil {
		m.opts.Logger.Warn().Err(err).Msg("persist queue state failed, continuing in memory")
	}
	counts := m.state.Counts()
	metrics.SetQueueDepth(counts.Pending, counts.Failed)
}

func (m *Manager) pendingIDsLocked() []string {
	ids := make([]string, 0, len(m.state.Actions))
	for _, a := range m.state.Actions {
		if a.Status == domain.StatusPending {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func (m *Manager) indexLocked(id string) int {
	for i := range m.state.Actions {
		if m.state.Actions[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) scheduleFollowUpLocked() {
	if m.closed || m.followTimer != nil {
		return
	}
	m.streak++
	delay := m.opts.Retry.Jittered(m.streak)
	m.opts.Logger.Debug().Dur("delay", delay).Int("attempt", m.streak).Msg("scheduling follow-up drain")
	m.followTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.followTimer = nil
		closed := m.closed
		m.mu.Unlock()
		if !closed {
			m.Drain(context.Background())
		}
	})
}
