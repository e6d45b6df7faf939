package domain

import (
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn within a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is one persisted exchange between a user and a persona.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PersonaID string    `json:"personaId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerID returns the user that owns the conversation.
func (c *Conversation) OwnerID() string {
	return c.UserID
}

// NewExchange builds a write-once conversation holding the user turn and the reply.
func NewExchange(userID, personaID, userMessage, reply string, now time.Time) *Conversation {
	return &Conversation{
		UserID:    userID,
		PersonaID: personaID,
		Messages: []Message{
			{Role: RoleUser, Content: userMessage, Timestamp: now},
			{Role: RoleAssistant, Content: reply, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
