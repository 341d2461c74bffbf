package store

import (
	"context"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openann19/offlineq/internal/config"
	"github.com/openann19/offlineq/internal/domain"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(config.Redis{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "offline_queue", zerolog.New(io.Discard)), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRedis(t)

	require.NoError(t, r.Connect(ctx))

	want := sampleState()
	require.NoError(t, r.Save(ctx, want))

	got, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRedisStoreMissingKeyIsEmpty(t *testing.T) {
	r, _ := newTestRedis(t)

	state, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyState(), state)
}

func TestRedisStoreCorruptValueIsEmpty(t *testing.T) {
	r, mr := newTestRedis(t)
	require.NoError(t, mr.Set("offline_queue", `]]not json[[`))

	state, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyState(), state)
}

func TestRedisStoreDownPropagatesError(t *testing.T) {
	r, mr := newTestRedis(t)
	mr.Close()

	_, err := r.Load(context.Background())
	assert.Error(t, err)
	assert.Error(t, r.Save(context.Background(), sampleState()))
}
