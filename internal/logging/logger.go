package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/config"
)

// New constructs the base logger from config. Defaults to JSON on
// stdout at info level when fields are empty or unparseable.
func New(cfg config.Log, app config.App) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil {
		level = parsed
	}

	var out = zerolog.New(os.Stdout)
	if strings.ToLower(strings.TrimSpace(cfg.Format)) == "console" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	return out.
		Level(level).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Logger()
}
