package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openann19/offlineq/internal/domain"
)

// Forwarder delivers action payloads to the backend API over HTTP.
// Each action type maps to one endpoint; the payload is posted as-is.
type Forwarder struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewForwarder(baseURL string, timeout time.Duration, logger zerolog.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Forwarder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "forwarder").Logger(),
	}
}

// Handler returns a Handler that POSTs the payload to path.
func (f *Forwarder) Handler(path string) Handler {
	url := f.baseURL + path
	return func(ctx context.Context, payload json.RawMessage) error {
		body := []byte(payload)
		if len(body) == 0 {
			body = []byte("{}")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("post %s: %w", url, err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			f.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("backend rejected payload")
			return fmt.Errorf("post %s: backend returned %d", url, resp.StatusCode)
		}
		return nil
	}
}

// DefaultRoutes maps each action type to its backend endpoint.
func DefaultRoutes() map[domain.ActionType]string {
	return map[domain.ActionType]string{
		domain.TypeLike:          "/api/v1/likes",
		domain.TypePass:          "/api/v1/passes",
		domain.TypeMessage:       "/api/v1/messages",
		domain.TypeUpload:        "/api/v1/uploads",
		domain.TypeUpdateProfile: "/api/v1/profile",
		domain.TypeDelete:        "/api/v1/deletions",
	}
}

// RegisterRoutes wires forwarding handlers for every route.
func RegisterRoutes(r *Registry, f *Forwarder, routes map[domain.ActionType]string) {
	for t, path := range routes {
		r.Register(t, f.Handler(path))
	}
}
