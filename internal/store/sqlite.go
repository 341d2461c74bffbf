package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/ports"
)

var _ ports.Store = (*SQLite)(nil)

// SQLite persists the queue state in a single-row slot table. One
// database can hold several independent queues keyed by slot name.
type SQLite struct {
	db     *sql.DB
	slot   string
	logger zerolog.Logger
}

func NewSQLite(path, slot string, logger zerolog.Logger) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	query := `CREATE TABLE IF NOT EXISTS queue_slots (
        slot TEXT PRIMARY KEY,
        state TEXT NOT NULL,
        updated_at DATETIME NOT NULL
    )`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue_slots table: %w", err)
	}

	return &SQLite{
		db:     db,
		slot:   slot,
		logger: logger.With().Str("component", "sqlite-store").Logger(),
	}, nil
}

func (s *SQLite) Load(ctx context.Context) (domain.State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM queue_slots WHERE slot = ?`, s.slot).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmptyState(), nil
	}
	if err != nil {
		return domain.EmptyState(), fmt.Errorf("load slot %q: %w", s.slot, err)
	}

	var state domain.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.logger.Warn().Err(err).Str("slot", s.slot).Msg("stored queue state is corrupt, starting empty")
		return domain.EmptyState(), nil
	}
	if state.Actions == nil {
		state.Actions = []domain.Action{}
	}
	return state, nil
}

func (s *SQLite) Save(ctx context.Context, state domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode queue state: %w", err)
	}

	query := `INSERT INTO queue_slots (slot, state, updated_at) VALUES (?, ?, ?)
              ON CONFLICT(slot) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, s.slot, string(data), time.Now()); err != nil {
		return fmt.Errorf("save slot %q: %w", s.slot, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
