package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openann19/offlineq/internal/api"
	"github.com/openann19/offlineq/internal/config"
	"github.com/openann19/offlineq/internal/logging"
	"github.com/openann19/offlineq/internal/metrics"
	"github.com/openann19/offlineq/internal/netmon"
	"github.com/openann19/offlineq/internal/queue"
	"github.com/openann19/offlineq/pkg/backoff"
)

func serveCmd() *cobra.Command {
	var port int

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the queue API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.API.Port = port
			}

			logger := logging.New(cfg.Log, cfg.App)
			metrics.Register()

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
			monitor := netmon.New(netmon.TCPProber(addr, cfg.Monitor.Timeout), cfg.Monitor.Interval, logger)
			monitor.Start(ctx)
			defer monitor.Stop()

			manager := queue.NewManager(st, monitor, buildDispatcher(cfg, logger), queue.Options{
				DefaultMaxRetries: cfg.Queue.MaxRetries,
				Retry:             backoff.Policy{Base: cfg.Queue.RetryBase, Max: cfg.Queue.RetryMax},
				Logger:            logger,
			})
			svc := queue.NewService(manager, monitor, logger)
			defer svc.Close()

			logger.Info().
				Str("store", cfg.Store.Driver).
				Str("backend", cfg.Backend.BaseURL).
				Msg("offline queue starting")

			return api.NewServer(svc, cfg.API, logger).Run(ctx)
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 0, "Override API port from config")
	return command
}
