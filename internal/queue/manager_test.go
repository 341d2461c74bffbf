package queue

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openann19/offlineq/internal/dispatch"
	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/netmon"
	"github.com/openann19/offlineq/internal/ports"
	"github.com/openann19/offlineq/internal/store"
	"github.com/openann19/offlineq/pkg/backoff"
)

func testOptions() Options {
	return Options{
		Logger: zerolog.New(io.Discard),
		Retry:  backoff.Policy{Base: time.Millisecond, Max: 5 * time.Millisecond},
	}
}

// callLog records executed payloads in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(p json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, string(p))
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestDrainDeliversInEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	mon := netmon.NewManual(false)
	reg := dispatch.NewRegistry()
	log := &callLog{}
	reg.Register(domain.TypeMessage, func(ctx context.Context, p json.RawMessage) error {
		log.add(p)
		return nil
	})

	m := NewManager(store.NewMemory(), mon, reg, testOptions())
	defer m.Close()

	for _, p := range []string{`"first"`, `"second"`, `"third"`} {
		m.Enqueue(ctx, domain.TypeMessage, json.RawMessage(p), 0)
	}
	require.Equal(t, domain.StatusCounts{Pending: 3, Total: 3}, m.Status(ctx))

	mon.Set(true)
	m.Drain(ctx)

	assert.Equal(t, []string{`"first"`, `"second"`, `"third"`}, log.list())
	assert.Equal(t, domain.StatusCounts{}, m.Status(ctx))
}

func TestRetryCeilingIsTerminal(t *testing.T) {
	ctx := context.Background()
	mon := netmon.NewManual(true)
	reg := dispatch.NewRegistry()
	log := &callLog{}
	reg.Register(domain.TypeLike, func(ctx context.Context, p json.RawMessage) error {
		log.add(p)
		return assert.AnError
	})

	m := NewManager(store.NewMemory(), mon, reg, testOptions())
	defer m.Close()

	m.Enqueue(ctx, domain.TypeLike, json.RawMessage(`{}`), 2)

	require.Eventually(t, func() bool {
		return m.Status(ctx).Failed == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Give any stray follow-up drain time to fire; none should.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, log.count())
	assert.Equal(t, domain.StatusCounts{Failed: 1, Total: 1}, m.Status(ctx))
}

func TestDrainOfflineIsNoop(t *testing.T) {
	ctx := context.Background()
	mon := netmon.NewManual(false)
	reg := dispatch.NewRegistry()
	log := &callLog{}
	reg.Register(domain.TypeMessage, func(ctx context.Context, p json.RawMessage) error {
		log.add(p)
		return nil
	})

	m := NewManager(store.NewMemory(), mon, reg, testOptions())
	defer m.Close()

	m.Enqueue(ctx, domain.TypeMessage, nil, 0)
	m.Drain(ctx)

	assert.Zero(t, log.count())
	assert.Equal(t, domain.StatusCounts{Pending: 1, Total: 1}, m.Status(ctx))
}

func TestDrainWhileProcessingIsNoop(t *testing.T) {
	ctx := context.Background()
	mon := netmon.NewManual(true)
	reg := dispatch.NewRegistry()
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	log := &callLog{}
	reg.Register(domain.TypeUpload, func(ctx context.Context, p json.RawMessage) error {
		log.add(p)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	m := NewManager(store.NewMemory(), mon, reg, testOptions())
	defer m.Close()

	m.Enqueue(ctx, domain.TypeUpload, json.RawMessage(`{}`), 0)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("drain never started")
	}

	// Returns immediately instead of running a second pass.
	m.Drain(ctx)
	assert.Equal(t, 1, log.count())

	close(release)
	require.Eventually(t, func() bool {
		return m.Status(ctx).Total == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, log.count())
}

type countingStore struct {
	ports.Store
	mu    sync.Mutex
	saves int
}

func (c *countingStore) Save(ctx context.Context, s domain.State) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.Store.Save(ctx, s)
}

func (c *countingStore) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func TestDrainEmptyQueueIsNoop(t *testing.T) {
	ctx := context.Background()
	cs := &countingStore{Store: store.NewMemory()}
	m := NewManager(cs, netmon.NewManual(true), dispatch.NewRegistry(), testOptions())
	defer m.Close()

	m.Drain(ctx)
	m.Drain(ctx)

	assert.Zero(t, cs.saveCount())
	assert.Equal(t, domain.StatusCounts{}, m.Status(ctx))
}

func TestRetryFailedRevivesAndDrains(t *testing.T) {
	ctx := context.Background()
	mon := netmon.NewManual(true)
	reg := dispatch.NewRegistry()
	log := &callLog{}
	reg.Register(domain.TypeUpdateProfile, func(ctx context.Context, p json.RawMessage) error {
		log.add(p)
		return assert.AnError
	})

	m := NewManager(store.NewMemory(), mon, reg, testOptions())
	defer m.Close()

	m.Enqueue(ctx, domain.TypeUpdateProfile, json.RawMessage(`{"bio":"x"}`), 1)
	require.Eventually(t, func() bool {
		return m.Status(ctx).Failed == 1 && !m.processing()
	}, 2*time.Second, 5*time.Millisecond)

	// Fix the endpoint, then ask for a manual retry.
	reg.Register(domain.TypeUpdateProfile, func(ctx context.Context, p json.RawMessage) error {
		log.add(p)
		return nil
	})
	m.RetryFailed(ctx)

	assert.Equal(t, domain.StatusCounts{}, m.Status(ctx))
	assert.Equal(t, 2, log.count())
}

func TestClearQueue(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := NewManager(st, netmon.NewManual(false), dispatch.NewRegistry(), testOptions())
	defer m.Close()

	for i := 0; i < 3; i++ {
		m.Enqueue(ctx, domain.TypeMessage, nil, 0)
	}
	require.Equal(t, 3, m.Status(ctx).Total)

	m.Clear(ctx)

	assert.Equal(t, domain.StatusCounts{}, m.Status(ctx))
	persisted, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted.Actions)
	assert.False(t, persisted.Processing)
}

func TestFailureDoesNotBlockLaterActions(t *testing.T) {
	ctx := context.Background()
	mon := netmon.NewManual(false)
	reg := dispatch.NewRegistry()
	log := &callLog{}
	reg.Register(domain.TypeLike, func(ctx context.Context, p json.RawMessage) error {
		return assert.AnError
	})
	reg.Register(domain.TypeMessage, func(ctx context.Context, p json.RawMessage) error {
		log.add(p)
		return nil
	})

	// Slow follow-up backoff so only the explicit pass runs.
	opts := testOptions()
	opts.Retry = backoff.Policy{Base: time.Minute, Max: time.Minute}
	m := NewManager(store.NewMemory(), mon, reg, opts)
	defer m.Close()

	m.Enqueue(ctx, domain.TypeLike, nil, 3)
	m.Enqueue(ctx, domain.TypeMessage, json.RawMessage(`"hi"`), 3)

	mon.Set(true)
	m.Drain(ctx)

	assert.Equal(t, []string{`"hi"`}, log.list())
	counts := m.Status(ctx)
	assert.Equal(t, 1, counts.Pending)
	assert.Equal(t, 1, counts.Total)
}

func TestStaleProcessingFlagIsResetOnLoad(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Save(ctx, domain.State{
		Actions: []domain.Action{{
			ID:         "a1",
			Type:       domain.TypeMessage,
			Payload:    json.RawMessage(`"stuck"`),
			MaxRetries: 3,
			Status:     domain.StatusPending,
		}},
		Processing: true, // previous run died mid-drain
	}))

	reg := dispatch.NewRegistry()
	log := &callLog{}
	reg.Register(domain.TypeMessage, func(ctx context.Context, p json.RawMessage) error {
		log.add(p)
		return nil
	})

	m := NewManager(st, netmon.NewManual(true), reg, testOptions())
	defer m.Close()

	m.Drain(ctx)

	assert.Equal(t, []string{`"stuck"`}, log.list())
	assert.Equal(t, domain.StatusCounts{}, m.Status(ctx))
}

func TestEnqueueReturnsIDSynchronously(t *testing.T) {
	ctx := context.Background()
	m := NewManager(store.NewMemory(), netmon.NewManual(false), dispatch.NewRegistry(), testOptions())
	defer m.Close()

	id := m.Enqueue(ctx, domain.TypeDelete, nil, 0)
	assert.NotEmpty(t, id)
	assert.Equal(t, domain.StatusCounts{Pending: 1, Total: 1}, m.Status(ctx))
}

func TestEnqueueSurvivesBrokenStore(t *testing.T) {
	ctx := context.Background()
	m := NewManager(failingStore{}, netmon.NewManual(false), dispatch.NewRegistry(), testOptions())
	defer m.Close()

	m.Enqueue(ctx, domain.TypeMessage, json.RawMessage(`"kept in memory"`), 0)
	assert.Equal(t, domain.StatusCounts{Pending: 1, Total: 1}, m.Status(ctx))
}

// processing reports the live drain guard, for tests that must wait
// out an in-flight pass.
func (m *Manager) processing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Processing
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context) (domain.State, error) {
	return domain.EmptyState(), assert.AnError
}

func (failingStore) Save(ctx context.Context, s domain.State) error {
	return assert.AnError
}
