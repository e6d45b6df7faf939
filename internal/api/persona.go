package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/ashureev/persona-lab/internal/identity"
	"github.com/ashureev/persona-lab/internal/persona"
	"github.com/go-chi/chi/v5"
)

// PersonaHandler handles persona CRUD endpoints.
type PersonaHandler struct {
	*Handler
	svc *persona.Service
}

// NewPersonaHandler creates a persona handler.
func NewPersonaHandler(base *Handler, svc *persona.Service) *PersonaHandler {
	return &PersonaHandler{Handler: base, svc: svc}
}

// RegisterRoutes registers persona routes. Callers mount them behind identity.Middleware.
func (h *PersonaHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/personas", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// Create handles POST /api/personas.
func (h *PersonaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPersonaRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	p, err := h.svc.Create(r.Context(), identity.UserIDFromContext(r.Context()), persona.CreateInput{
		Name:            req.Name,
		Description:     req.Description,
		Characteristics: req.Characteristics,
	})
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	Created(w, p, "Persona created successfully")
}

// List handles GET /api/personas.
func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	personas, err := h.svc.List(r.Context(), identity.UserIDFromContext(r.Context()))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	Success(w, map[string]any{"personas": personas, "count": len(personas)}, "")
}

// Get handles GET /api/personas/{id}.
func (h *PersonaHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetOwned(r.Context(), chi.URLParam(r, "id"), identity.UserIDFromContext(r.Context()))
	if err != nil {
		h.writePersonaError(w, r, err, "You can only access your own personas")
		return
	}

	Success(w, p, "")
}

// Update handles PUT /api/personas/{id}.
func (h *PersonaHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updatePersonaRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	upd := req.update()
	if upd.IsEmpty() {
		h.WriteError(w, r, &AppError{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Code:    CodeValidation,
			Details: `"value" must contain at least one of [name, description, characteristics]`,
		})
		return
	}

	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), identity.UserIDFromContext(r.Context()), upd)
	if err != nil {
		h.writePersonaError(w, r, err, "You can only update your own personas")
		return
	}

	Success(w, p, "Persona updated successfully")
}

// Delete handles DELETE /api/personas/{id}.
func (h *PersonaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id, identity.UserIDFromContext(r.Context())); err != nil {
		h.writePersonaError(w, r, err, "You can only delete your own personas")
		return
	}

	Success(w, map[string]string{"deletedId": id}, "Persona deleted successfully")
}

func (h *PersonaHandler) writePersonaError(w http.ResponseWriter, r *http.Request, err error, denied string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "Persona")
	case errors.Is(err, domain.ErrAccessDenied):
		Forbidden(w, denied)
	default:
		h.WriteError(w, r, err)
	}
}
