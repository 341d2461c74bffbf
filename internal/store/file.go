package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/ports"
)

var _ ports.Store = (*File)(nil)

// File persists the queue state as a single JSON blob on disk, the
// direct analog of the browser storage slot this queue grew out of.
type File struct {
	path   string
	logger zerolog.Logger
}

func NewFile(path string, logger zerolog.Logger) (*File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &File{path: path, logger: logger.With().Str("component", "file-store").Logger()}, nil
}

func (f *File) Load(ctx context.Context) (domain.State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.EmptyState(), nil
		}
		return domain.EmptyState(), fmt.Errorf("read %s: %w", f.path, err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		f.logger.Warn().Err(err).Str("path", f.path).Msg("stored queue state is corrupt, starting empty")
		return domain.EmptyState(), nil
	}
	if state.Actions == nil {
		state.Actions = []domain.Action{}
	}
	return state, nil
}

func (f *File) Save(ctx context.Context, state domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode queue state: %w", err)
	}

	// Write-then-rename so a crash mid-write never corrupts the slot.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
