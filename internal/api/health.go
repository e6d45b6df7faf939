package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger reports store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health endpoint.
type HealthHandler struct {
	store             Pinger
	generationEnabled bool
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(store Pinger, generationEnabled bool) *HealthHandler {
	return &HealthHandler{store: store, generationEnabled: generationEnabled}
}

// RegisterHealth registers the health route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}

// Health reports process and dependency status. A failing store answers 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	generation := "disabled"
	if h.generationEnabled {
		generation = "active"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, message, storeStatus, code := "OK", "Server is running", "active", http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		slog.Warn("Store health check failed", "error", err)
		status, message, storeStatus, code = "DEGRADED", "Store is unreachable", "unavailable", http.StatusServiceUnavailable
	}

	JSON(w, code, map[string]any{
		"status":  status,
		"message": message,
		"services": map[string]string{
			"generation": generation,
			"store":      storeStatus,
		},
	})
}
