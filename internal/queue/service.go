package queue

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/metrics"
	"github.com/openann19/offlineq/internal/ports"
)

// Service is the narrow facade callers hold: enqueue, status, retry,
// clear, plus the connectivity flag for UI binding. It subscribes to
// the monitor so a reconnect drains the queue automatically; Close
// releases the subscription.
type Service struct {
	manager *Manager
	monitor ports.Monitor
	logger  zerolog.Logger
	unsub   func()
}

func NewService(manager *Manager, monitor ports.Monitor, logger zerolog.Logger) *Service {
	s := &Service{
		manager: manager,
		monitor: monitor,
		logger:  logger.With().Str("component", "queue-service").Logger(),
	}
	metrics.SetOnline(monitor.Online())
	s.unsub = monitor.Subscribe(func(online bool) {
		metrics.SetOnline(online)
		if online {
			s.logger.Info().Msg("connectivity restored, draining queue")
			s.ProcessQueue()
		}
	})
	return s
}

func (s *Service) EnqueueAction(ctx context.Context, t domain.ActionType, payload json.RawMessage, maxRetries int) string {
	return s.manager.Enqueue(ctx, t, payload, maxRetries)
}

func (s *Service) RetryFailed(ctx context.Context) {
	s.manager.RetryFailed(ctx)
}

func (s *Service) Status(ctx context.Context) domain.StatusCounts {
	return s.manager.Status(ctx)
}

// ProcessQueue triggers a drain attempt without waiting for it.
func (s *Service) ProcessQueue() {
	go s.manager.Drain(context.Background())
}

func (s *Service) ClearQueue(ctx context.Context) {
	s.manager.Clear(ctx)
}

func (s *Service) Online() bool {
	return s.monitor.Online()
}

func (s *Service) Close() {
	s.unsub()
	s.manager.Close()
}
