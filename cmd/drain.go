package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openann19/offlineq/internal/config"
	"github.com/openann19/offlineq/internal/logging"
	"github.com/openann19/offlineq/internal/netmon"
	"github.com/openann19/offlineq/internal/queue"
	"github.com/openann19/offlineq/pkg/backoff"
)

// drainCmd runs a single drain pass and exits. Useful from cron or for
// flushing a queue left behind by a crashed serve process.
func drainCmd() *cobra.Command {
	var command = &cobra.Command{
		Use:   "drain",
		Short: "Run one drain pass against the backend and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log, cfg.App)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, closeStore, err := buildStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			addr, err := probeAddr(cfg)
			if err != nil {
				return err
			}
			online := netmon.TCPProber(addr, cfg.Monitor.Timeout)(ctx)
			if !online {
				logger.Warn().Str("addr", addr).Msg("backend unreachable, nothing to drain")
			}

			manager := queue.NewManager(st, netmon.NewManual(online), buildDispatcher(cfg, logger), queue.Options{
				DefaultMaxRetries: cfg.Queue.MaxRetries,
				Retry:             backoff.Policy{Base: cfg.Queue.RetryBase, Max: cfg.Queue.RetryMax},
				Logger:            logger,
			})
			defer manager.Close()

			manager.Drain(ctx)

			counts := manager.Status(ctx)
			logger.Info().
				Int("pending", counts.Pending).
				Int("failed", counts.Failed).
				Int("total", counts.Total).
				Msg("drain pass finished")
			return nil
		},
	}
	return command
}
