package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/ports"
)

var _ ports.Store = (*Failover)(nil)

// Failover wraps a durable primary store with an in-memory fallback.
// When the primary errors, writes land in the fallback so the queue
// keeps working for the current session; the primary is re-probed
// after the recheck interval.
type Failover struct {
	primary  ports.Store
	fallback ports.Store
	recheck  time.Duration
	logger   zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailover(primary, fallback ports.Store, recheck time.Duration, logger zerolog.Logger) *Failover {
	if recheck <= 0 {
		recheck = time.Minute
	}
	return &Failover{
		primary:  primary,
		fallback: fallback,
		recheck:  recheck,
		logger:   logger.With().Str("component", "failover-store").Logger(),
	}
}

func (f *Failover) markDown() {
	f.isDown.Store(true)
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *Failover) shouldRetryPrimary() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Since(f.lastCheck) > f.recheck
}

func (f *Failover) Load(ctx context.Context) (domain.State, error) {
	if !f.isDown.Load() {
		state, err := f.primary.Load(ctx)
		if err == nil {
			return state, nil
		}
		f.logger.Error().Err(err).Msg("primary store failed, falling back to memory")
		f.markDown()
	}

	if f.isDown.Load() && f.shouldRetryPrimary() {
		state, err := f.primary.Load(ctx)
		if err == nil {
			f.isDown.Store(false)
			return state, nil
		}
		f.mu.Lock()
		f.lastCheck = time.Now()
		f.mu.Unlock()
	}

	return f.fallback.Load(ctx)
}

func (f *Failover) Save(ctx context.Context, state domain.State) error {
	if !f.isDown.Load() {
		err := f.primary.Save(ctx, state)
		if err == nil {
			return nil
		}
		f.logger.Error().Err(err).Msg("primary store failed, falling back to memory")
		f.markDown()
	}

	if f.isDown.Load() && f.shouldRetryPrimary() {
		if err := f.primary.Save(ctx, state); err == nil {
			f.isDown.Store(false)
			return nil
		}
		f.mu.Lock()
		f.lastCheck = time.Now()
		f.mu.Unlock()
	}

	return f.fallback.Save(ctx, state)
}
