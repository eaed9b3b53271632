package api

import (
	"context"
	"log/slog"
	"net/http"

	"movies-api/internal/auth"
	"movies-api/internal/observability/logging"
	"movies-api/internal/observability/metrics"
	"movies-api/internal/storage"
)

// Pinger reports whether an injected dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the movie and session routes.
type Handler struct {
	Movies              storage.Repository
	Guard               *auth.Guard
	Logger              *slog.Logger
	Metrics             *metrics.Recorder
	SessionCookiePolicy SessionCookiePolicy
	// RateLimiter is checked by Health when a shared limiter store is configured.
	RateLimiter Pinger
}

// NewHandler wires the repository and guard into a Handler.
func NewHandler(movies storage.Repository, guard *auth.Guard) *Handler {
	return &Handler{
		Movies:              movies,
		Guard:               guard,
		SessionCookiePolicy: DefaultSessionCookiePolicy(),
	}
}

func (h *Handler) metrics() *metrics.Recorder {
	if h.Metrics != nil {
		return h.Metrics
	}
	return metrics.Default()
}

func (h *Handler) logger(ctx context.Context) *slog.Logger {
	if h.Logger == nil {
		if ctxLogger := logging.LoggerFromContext(ctx); ctxLogger != nil {
			return ctxLogger
		}
		return logging.WithContext(ctx, slog.Default())
	}
	return logging.WithContext(ctx, h.Logger)
}

// Health reports the reachability of the datastore, session store, and any
// shared rate limiter. Any failure turns the response into 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components, status, code := h.componentHealth(r.Context())
	for _, component := range components {
		h.metrics().SetComponentHealth(component.Component, component.Status)
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
	})
}
