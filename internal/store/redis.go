package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/config"
	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/ports"
)

var _ ports.Store = (*Redis)(nil)

// Redis persists the queue state as a JSON blob under a single key.
type Redis struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

func NewRedisClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedis(client *redis.Client, key string, logger zerolog.Logger) *Redis {
	return &Redis{
		client: client,
		key:    key,
		logger: logger.With().Str("component", "redis-store").Logger(),
	}
}

// Connect verifies the connection. Used at startup only; Load and Save
// surface their own errors afterwards.
func (r *Redis) Connect(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context) (domain.State, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.EmptyState(), nil
	}
	if err != nil {
		return domain.EmptyState(), fmt.Errorf("load key %q: %w", r.key, err)
	}

	var state domain.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		r.logger.Warn().Err(err).Str("key", r.key).Msg("stored queue state is corrupt, starting empty")
		return domain.EmptyState(), nil
	}
	if state.Actions == nil {
		state.Actions = []domain.Action{}
	}
	return state, nil
}

func (r *Redis) Save(ctx context.Context, state domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode queue state: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save key %q: %w", r.key, err)
	}
	return nil
}
