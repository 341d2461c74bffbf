package store

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openann19/offlineq/internal/domain"
)

func sampleState() domain.State {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return domain.State{
		Actions: []domain.Action{
			{ID: "a1", Type: domain.TypeMessage, Payload: json.RawMessage(`{"text":"hi"}`), Timestamp: ts, MaxRetries: 3, Status: domain.StatusPending},
			{ID: "a2", Type: domain.TypeLike, Payload: json.RawMessage(`{"pet":"rex"}`), Timestamp: ts, Retries: 3, MaxRetries: 3, Status: domain.StatusFailed},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.json")
	f, err := NewFile(path, zerolog.New(io.Discard))
	require.NoError(t, err)

	want := sampleState()
	require.NoError(t, f.Save(ctx, want))

	got, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStoreSaveLoadFixedPoint(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.json")
	f, err := NewFile(path, zerolog.New(io.Discard))
	require.NoError(t, err)

	require.NoError(t, f.Save(ctx, sampleState()))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := f.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, f.Save(ctx, loaded))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestFileStoreMissingIsEmpty(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "absent.json"), zerolog.New(io.Discard))
	require.NoError(t, err)

	state, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyState(), state)
}

func TestFileStoreCorruptIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"actions": [truncated`), 0o644))

	f, err := NewFile(path, zerolog.New(io.Discard))
	require.NoError(t, err)

	state, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyState(), state)
}
