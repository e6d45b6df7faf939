package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/ashureev/persona-lab/internal/metrics"
	"github.com/ashureev/persona-lab/internal/shared"
)

// PersonaSource resolves personas by ID, returning domain.ErrNotFound when absent.
type PersonaSource interface {
	Get(ctx context.Context, id string) (*domain.Persona, error)
}

// Store persists and lists conversation documents.
type Store interface {
	CreateConversation(ctx context.Context, c *domain.Conversation) (string, error)
	ListConversations(ctx context.Context, userID, personaID string, limit int) ([]*domain.Conversation, error)
}

// Service orchestrates a chat turn: ownership, prompt, generation and persistence.
type Service struct {
	personas  PersonaSource
	store     Store
	generator Generator
	now       func() time.Time
}

// NewService creates an interview service. A nil generator disables SendMessage.
func NewService(personas PersonaSource, store Store, generator Generator) *Service {
	return &Service{
		personas:  personas,
		store:     store,
		generator: generator,
		now:       time.Now,
	}
}

// GenerationEnabled reports whether a generator is configured.
func (s *Service) GenerationEnabled() bool {
	return s.generator != nil
}

// SendMessage generates the persona's reply to req and records the exchange.
// A failed save does not fail the call: it is reported in Result.SaveErr.
func (s *Service) SendMessage(ctx context.Context, userID string, req Request) (*Result, error) {
	p, err := s.personas.Get(ctx, req.PersonaID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckOwner(p, userID); err != nil {
		slog.Warn("Interview access denied", "persona_id", req.PersonaID, "user_id", userID)
		return nil, err
	}

	if s.generator == nil {
		return nil, ErrGenerationDisabled
	}

	prompt := BuildPrompt(p, req.History, req.Message)
	slog.Debug("Generating reply",
		"persona_id", p.ID,
		"history_length", len(req.History),
		"prompt_length", len(prompt),
	)

	start := time.Now()
	reply, err := s.generator.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errEmptyReply
	}
	if err != nil {
		err = classifyGenerationError(err)
	}
	metrics.RecordGeneration(outcome(err), time.Since(start))
	if err != nil {
		slog.Error("Reply generation failed", "persona_id", p.ID, "user_id", userID, "error", err)
		return nil, err
	}

	result := &Result{Reply: reply}

	id, saveErr := s.store.CreateConversation(ctx, domain.NewExchange(userID, p.ID, req.Message, reply, s.now().UTC()))
	if saveErr != nil {
		metrics.RecordConversationSaveFailure()
		slog.Error("Failed to save conversation", "persona_id", p.ID, "user_id", userID, "error", saveErr)
		result.SaveErr = saveErr
		return result, nil
	}

	result.ConversationID = id
	slog.Info("Conversation saved", "conversation_id", id, "persona_id", p.ID, "user_id", userID)
	return result, nil
}

// ListConversations returns the caller's conversations with a persona, newest first.
// limit defaults to DefaultConversationLimit and is capped at MaxConversationLimit.
func (s *Service) ListConversations(ctx context.Context, userID, personaID string, limit int) ([]*domain.Conversation, error) {
	switch {
	case limit <= 0:
		limit = DefaultConversationLimit
	case limit > MaxConversationLimit:
		limit = MaxConversationLimit
	}

	conversations, err := s.store.ListConversations(ctx, userID, personaID, limit)
	if err != nil {
		if shared.IsIndexBuildingError(err) {
			slog.Error("Conversation index not ready", "user_id", userID, "persona_id", personaID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrStoreNotReady, err)
		}
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}
