package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOwner(t *testing.T) {
	p := &Persona{ID: "p1", UserID: "alice"}

	require.NoError(t, CheckOwner(p, "alice"))
	assert.ErrorIs(t, CheckOwner(p, "bob"), ErrAccessDenied)
	assert.ErrorIs(t, CheckOwner(p, ""), ErrAccessDenied)

	c := &Conversation{UserID: "alice"}
	require.NoError(t, CheckOwner(c, "alice"))
}

func TestPersonaUpdateApply(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Persona{Name: "Ada", Description: "A historian", Characteristics: []string{"witty"}, UserID: "alice", CreatedAt: created, UpdatedAt: created}

	name := "Grace"
	traits := []string{"curious", "precise"}
	upd := PersonaUpdate{Name: &name, Characteristics: &traits}
	require.False(t, upd.IsEmpty())

	now := created.Add(time.Hour)
	upd.Apply(p, now)

	assert.Equal(t, "Grace", p.Name)
	assert.Equal(t, "A historian", p.Description)
	assert.Equal(t, []string{"curious", "precise"}, p.Characteristics)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, created, p.CreatedAt)
	assert.Equal(t, now, p.UpdatedAt)

	traits[0] = "mutated"
	assert.Equal(t, "curious", p.Characteristics[0])

	assert.True(t, PersonaUpdate{}.IsEmpty())
}

func TestNewExchange(t *testing.T) {
	now := time.Now()
	c := NewExchange("alice", "p1", "Hello", "Hi there", now)

	require.Len(t, c.Messages, 2)
	assert.Equal(t, RoleUser, c.Messages[0].Role)
	assert.Equal(t, "Hello", c.Messages[0].Content)
	assert.Equal(t, RoleAssistant, c.Messages[1].Role)
	assert.Equal(t, "Hi there", c.Messages[1].Content)
	assert.Equal(t, "p1", c.PersonaID)
	assert.Empty(t, c.ID)
}
