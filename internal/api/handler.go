// Package api provides HTTP handlers for the persona API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Handler provides common handler utilities.
type Handler struct {
	isDev bool
}

// NewHandler creates a new Handler. isDev exposes error details in responses.
func NewHandler(isDev bool) *Handler {
	return &Handler{isDev: isDev}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Root describes the service and its endpoint groups.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":  "OK",
		"message": "AI Persona Backend API",
		"version": Version,
		"endpoints": map[string]string{
			"health":     "/health",
			"test":       "/api/test",
			"me":         "/api/me",
			"profile":    "/api/profile",
			"personas":   "/api/personas",
			"interviews": "/api/interviews",
			"metrics":    "/metrics",
		},
	})
}

// Test is an unauthenticated smoke-test endpoint.
func (h *Handler) Test(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"message": "API is working!"})
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	Fail(w, http.StatusNotFound, fmt.Sprintf("Route %s not found", r.URL.RequestURI()), CodeNotFound, nil)
}
