package cmd

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/config"
	"github.com/openann19/offlineq/internal/dispatch"
	"github.com/openann19/offlineq/internal/ports"
	"github.com/openann19/offlineq/internal/store"
)

func buildStore(cfg *config.Config, logger zerolog.Logger) (ports.Store, func(), error) {
	closer := func() {}

	var primary ports.Store
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), closer, nil
	case "file":
		f, err := store.NewFile(cfg.Store.FilePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		primary = f
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.SQLitePath, cfg.Store.Slot, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		closer = func() { _ = s.Close() }
		primary = s
	case "redis":
		client := store.NewRedisClient(cfg.Store.Redis)
		r := store.NewRedis(client, cfg.Store.Slot, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Connect(ctx); err != nil {
			// Not fatal: the failover wrapper keeps the queue alive
			// in memory until redis comes back.
			logger.Warn().Err(err).Msg("redis unreachable at startup")
		}
		closer = func() { _ = client.Close() }
		primary = r
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.Failover {
		return store.NewFailover(primary, store.NewMemory(), cfg.Store.FailoverRecheck, logger), closer, nil
	}
	return primary, closer, nil
}

func buildDispatcher(cfg *config.Config, logger zerolog.Logger) ports.Dispatcher {
	reg := dispatch.NewRegistry()
	fwd := dispatch.NewForwarder(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	dispatch.RegisterRoutes(reg, fwd, dispatch.DefaultRoutes())
	return reg
}

func probeAddr(cfg *config.Config) (string, error) {
	if cfg.Monitor.ProbeAddr != "" {
		return cfg.Monitor.ProbeAddr, nil
	}
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse backend base url: %w", err)
	}
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(host, port)
	}
	return host, nil
}
