package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/config"
	"github.com/openann19/offlineq/internal/domain"
	"github.com/openann19/offlineq/internal/queue"
)

type enqueueReq struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	MaxRetries int             `json:"max_retries"`
}

type Server struct {
	router  *chi.Mux
	svc     *queue.Service
	cfg     config.API
	logger  zerolog.Logger
	limiter *rateLimiter
}

func NewServer(svc *queue.Service, cfg config.API, logger zerolog.Logger) *Server {
	s := &Server{
		svc:     svc,
		cfg:     cfg,
		logger:  logger.With().Str("component", "api").Logger(),
		limiter: newRateLimiter(cfg),
	}

	r := chi.NewRouter()
	r.Post("/enqueue", s.handleEnqueue)
	r.Post("/retry", s.handleRetry)
	r.Post("/drain", s.handleDrain)
	r.Get("/status", s.handleStatus)
	r.Delete("/queue", s.handleClear)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t := domain.ActionType(req.Type)
	if !domain.ValidType(t) {
		http.Error(w, fmt.Sprintf("unknown action type %q", req.Type), http.StatusBadRequest)
		return
	}

	id := s.svc.EnqueueAction(r.Context(), t, req.Payload, req.MaxRetries)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.svc.RetryFailed(r.Context())
	_ = json.NewEncoder(w).Encode(s.svc.Status(r.Context()))
}

func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	s.svc.ProcessQueue()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts := s.svc.Status(r.Context())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"pending": counts.Pending,
		"failed":  counts.Failed,
		"total":   counts.Total,
		"online":  s.svc.Online(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearQueue(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"online": s.svc.Online(),
	})
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		recoverHandler(s.logger),
		loggerHandler(s.logger, func(w http.ResponseWriter, r *http.Request) bool { return r.URL.Path == "/healthz" }),
		realIPHandler,
		rateLimitHandler(s.limiter),
		requestIDHandler,
		corsHandler,
	)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	httpServer := http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
