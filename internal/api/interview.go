package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/ashureev/persona-lab/internal/identity"
	"github.com/ashureev/persona-lab/internal/interview"
	"github.com/go-chi/chi/v5"
)

// InterviewHandler handles chat and conversation history endpoints.
type InterviewHandler struct {
	*Handler
	svc     *interview.Service
	limiter func(http.Handler) http.Handler
}

// NewInterviewHandler creates an interview handler. limiter, when non-nil,
// wraps the message route.
func NewInterviewHandler(base *Handler, svc *interview.Service, limiter func(http.Handler) http.Handler) *InterviewHandler {
	return &InterviewHandler{Handler: base, svc: svc, limiter: limiter}
}

// RegisterRoutes registers interview routes. Callers mount them behind identity.Middleware.
func (h *InterviewHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/interviews", func(r chi.Router) {
		if h.limiter != nil {
			r.With(h.limiter).Post("/message", h.SendMessage)
		} else {
			r.Post("/message", h.SendMessage)
		}
		r.Get("/conversations/{personaId}", h.ListConversations)
	})
}

type interviewResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

// SendMessage handles POST /api/interviews/message.
func (h *InterviewHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req interviewMessageRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	slog.Info("Interview message",
		"user_id", userID,
		"persona_id", req.PersonaID,
		"message_length", len(req.Message),
		"history_length", len(req.History),
	)

	// A started generation is not aborted when the client goes away.
	ctx := context.WithoutCancel(r.Context())

	res, err := h.svc.SendMessage(ctx, userID, interview.Request{
		PersonaID: req.PersonaID,
		Message:   req.Message,
		History:   req.history(),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			NotFound(w, "Persona")
		case errors.Is(err, domain.ErrAccessDenied):
			Forbidden(w, "You can only chat with your own personas")
		default:
			h.WriteError(w, r, err)
		}
		return
	}

	Success(w, interviewResponse{Message: res.Reply, ConversationID: res.ConversationID}, "")
}

// ListConversations handles GET /api/interviews/conversations/{personaId}?limit=N.
func (h *InterviewHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	// Unparseable limits fall back to the default; the service clamps the rest.
	limit := interview.DefaultConversationLimit
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}

	conversations, err := h.svc.ListConversations(r.Context(), identity.UserIDFromContext(r.Context()), chi.URLParam(r, "personaId"), limit)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	Success(w, map[string]any{"conversations": conversations}, "")
}
