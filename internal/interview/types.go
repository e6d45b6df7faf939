// Package interview runs a chat turn against a persona and records the exchange.
package interview

import (
	"errors"

	"github.com/ashureev/persona-lab/internal/domain"
)

// Conversation listing bounds.
const (
	DefaultConversationLimit = 50
	MaxConversationLimit     = 100
)

var (
	// ErrGenerationAuth means the generation API rejected the configured key.
	ErrGenerationAuth = errors.New("generation api key is invalid or missing")

	// ErrGenerationQuota means the generation API quota is exhausted.
	ErrGenerationQuota = errors.New("generation quota exceeded")

	// ErrModelUnavailable means the configured model does not exist or is not supported.
	ErrModelUnavailable = errors.New("generation model not available")

	// ErrGenerationFailed wraps any other generation failure.
	ErrGenerationFailed = errors.New("failed to generate reply")

	// ErrGenerationDisabled is returned when no generation client is configured.
	ErrGenerationDisabled = errors.New("generation is not configured")

	// ErrStoreNotReady is returned while the store is still building the index a query needs.
	ErrStoreNotReady = errors.New("conversation index is being created")
)

// Request is one user turn sent to a persona.
type Request struct {
	PersonaID string
	Message   string
	History   []domain.Message
}

// Result carries the generated reply and, independently, the outcome of persisting it.
// ConversationID is empty when SaveErr is set.
type Result struct {
	Reply          string
	ConversationID string
	SaveErr        error
}
