package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	App     App
	Log     Log
	Store   Store
	Monitor Monitor
	Queue   Queue
	API     API
	Backend Backend
}

type App struct {
	Name        string `env:"APP_NAME" envDefault:"offlineq"`
	Environment string `env:"APP_ENV" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type Store struct {
	Driver          string        `env:"STORE_DRIVER" envDefault:"file"`
	Slot            string        `env:"STORE_SLOT" envDefault:"offline_queue"`
	FilePath        string        `env:"STORE_FILE_PATH" envDefault:"data/offline_queue.json"`
	SQLitePath      string        `env:"STORE_SQLITE_PATH" envDefault:"data/offlineq.db"`
	Failover        bool          `env:"STORE_FAILOVER" envDefault:"true"`
	FailoverRecheck time.Duration `env:"STORE_FAILOVER_RECHECK" envDefault:"1m"`
	Redis           Redis
}

type Redis struct {
	Addr     string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
	PoolSize int    `env:"REDIS_POOL_SIZE"`
}

type Monitor struct {
	// ProbeAddr is the host:port dialed to decide connectivity. When
	// empty, the backend base URL's host is used.
	ProbeAddr string        `env:"MONITOR_PROBE_ADDRESS"`
	Interval  time.Duration `env:"MONITOR_PROBE_INTERVAL" envDefault:"5s"`
	Timeout   time.Duration `env:"MONITOR_PROBE_TIMEOUT" envDefault:"2s"`
}

type Queue struct {
	MaxRetries int           `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	RetryBase  time.Duration `env:"QUEUE_RETRY_BASE" envDefault:"500ms"`
	RetryMax   time.Duration `env:"QUEUE_RETRY_MAX" envDefault:"30s"`
}

type API struct {
	Port      int     `env:"API_PORT" envDefault:"8080"`
	RateRPS   float64 `env:"API_RATE_RPS" envDefault:"10"`
	RateBurst int     `env:"API_RATE_BURST" envDefault:"20"`
}

type Backend struct {
	BaseURL string        `env:"BACKEND_BASE_URL" envDefault:"http://localhost:9000"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
}

func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "file", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Queue.MaxRetries < 1 {
		return fmt.Errorf("QUEUE_MAX_RETRIES must be at least 1, got %d", c.Queue.MaxRetries)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	return nil
}
