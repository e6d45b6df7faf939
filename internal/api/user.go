package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/ashureev/persona-lab/internal/identity"
	"github.com/go-chi/chi/v5"
)

// ProfileStore persists per-user profile documents.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	MergeProfile(ctx context.Context, userID string, fields domain.Profile) error
	DeleteProfile(ctx context.Context, userID string) error
}

// UserHandler serves the caller's identity and profile.
type UserHandler struct {
	*Handler
	profiles ProfileStore
	now      func() time.Time
}

// NewUserHandler creates a user handler.
func NewUserHandler(base *Handler, profiles ProfileStore) *UserHandler {
	return &UserHandler{Handler: base, profiles: profiles, now: time.Now}
}

// RegisterRoutes registers user routes. Callers mount them behind identity.Middleware.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.Me)
		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.UpdateProfile)
		r.Delete("/account", h.DeleteAccount)
	})
}

// Me handles GET /api/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		Unauthorized(w, "User not authenticated")
		return
	}
	Success(w, id, "User authenticated successfully")
}

// GetProfile handles GET /api/profile.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		Unauthorized(w, "User not authenticated")
		return
	}

	stored, err := h.profiles.GetProfile(r.Context(), id.UID)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if stored == nil {
		Fail(w, http.StatusNotFound, "User profile not found", CodeProfileNotFound, nil)
		return
	}

	profile := domain.Profile{"uid": id.UID, "email": id.Email}
	for k, v := range stored {
		profile[k] = v
	}
	profile["lastLoginAt"] = id.AuthTime

	Success(w, profile, "Profile retrieved successfully")
}

// UpdateProfile handles PUT /api/profile. Only allow-listed fields are stored.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	uid := identity.UserIDFromContext(r.Context())
	fields := req.fields()
	fields["updatedAt"] = h.now().UTC().Format(time.RFC3339Nano)

	if err := h.profiles.MergeProfile(r.Context(), uid, fields); err != nil {
		h.WriteError(w, r, err)
		return
	}

	updated := make([]string, 0, len(fields))
	for k := range fields {
		updated = append(updated, k)
	}
	sort.Strings(updated)

	Success(w, map[string]any{"updatedFields": updated}, "Profile updated successfully")
}

// DeleteAccount handles DELETE /api/account. It removes stored user data only;
// the identity provider account itself is untouched.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	uid := identity.UserIDFromContext(r.Context())
	if err := h.profiles.DeleteProfile(r.Context(), uid); err != nil {
		h.WriteError(w, r, err)
		return
	}

	Success(w, map[string]string{"uid": uid}, "User data deleted successfully")
}
