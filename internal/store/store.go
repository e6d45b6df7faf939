// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/persona-lab/internal/domain"
)

// DefaultConversationLimit caps conversation listings when the caller passes no limit.
const DefaultConversationLimit = 50

// Repository defines the interface for persisting personas, conversations and profiles.
// The store has no authorization concept: callers enforce ownership.
type Repository interface {
	// CreatePersona persists a new persona and returns it with its assigned ID and timestamps.
	CreatePersona(ctx context.Context, p *domain.Persona) (*domain.Persona, error)

	// GetPersona retrieves a persona by ID. Returns nil, nil if it does not exist.
	GetPersona(ctx context.Context, id string) (*domain.Persona, error)

	// ListPersonas returns the personas owned by userID, newest first.
	ListPersonas(ctx context.Context, userID string) ([]*domain.Persona, error)

	// UpdatePersona merges upd into the stored persona and refreshes updatedAt.
	// Returns domain.ErrNotFound if the persona does not exist.
	UpdatePersona(ctx context.Context, id string, upd domain.PersonaUpdate) (*domain.Persona, error)

	// DeletePersona removes a persona. Returns domain.ErrNotFound if it does not exist.
	DeletePersona(ctx context.Context, id string) error

	// CreateConversation persists a conversation and returns its assigned ID.
	CreateConversation(ctx context.Context, c *domain.Conversation) (string, error)

	// ListConversations returns the conversations of userID with personaID, newest first, at most limit.
	ListConversations(ctx context.Context, userID, personaID string, limit int) ([]*domain.Conversation, error)

	// GetProfile returns the profile document of a user. Returns nil, nil if it does not exist.
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)

	// MergeProfile merges fields into the profile document, creating it if needed.
	MergeProfile(ctx context.Context, userID string, fields domain.Profile) error

	// DeleteProfile removes the profile document of a user. Missing documents are not an error.
	DeleteProfile(ctx context.Context, userID string) error

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying client.
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultConversationLimit
	}
	return limit
}
