package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakePersonas map[string]*domain.Persona

func (f fakePersonas) Get(_ context.Context, id string) (*domain.Persona, error) {
	p, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type fakeStore struct {
	mu        sync.Mutex
	saved     []*domain.Conversation
	saveErr   error
	listErr   error
	lastLimit int
}

func (f *fakeStore) CreateConversation(_ context.Context, c *domain.Conversation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, c)
	return fmt.Sprintf("c%d", len(f.saved)), nil
}

func (f *fakeStore) ListConversations(_ context.Context, userID, personaID string, limit int) ([]*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.Conversation
	for i := len(f.saved) - 1; i >= 0 && len(out) < limit; i-- {
		c := f.saved[i]
		if c.UserID == userID && c.PersonaID == personaID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

var ada = &domain.Persona{
	ID:              "ada",
	Name:            "Ada",
	Description:     "A historian",
	Characteristics: []string{"witty"},
	UserID:          "alice",
}

func newTestService(store *fakeStore, gen Generator) *Service {
	svc := NewService(fakePersonas{"ada": ada}, store, gen)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestSendMessageSavesExchange(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{reply: "Greetings, traveller."}
	svc := newTestService(store, gen)

	res, err := svc.SendMessage(context.Background(), "alice", Request{PersonaID: "ada", Message: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Greetings, traveller.", res.Reply)
	assert.Equal(t, "c1", res.ConversationID)
	assert.NoError(t, res.SaveErr)

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, "alice", saved.UserID)
	assert.Equal(t, "ada", saved.PersonaID)
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "Hello", Timestamp: svc.now()}, saved.Messages[0])
	assert.Equal(t, domain.RoleAssistant, saved.Messages[1].Role)
	assert.Equal(t, "Greetings, traveller.", saved.Messages[1].Content)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "You are Ada.")
	assert.Contains(t, gen.prompts[0], noHistoryMarker)
	assert.Contains(t, gen.prompts[0], `"Hello"`)
}

func TestSendMessageSaveFailureStillReturnsReply(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("firestore unavailable")}
	svc := newTestService(store, &fakeGenerator{reply: "Hi!"})

	res, err := svc.SendMessage(context.Background(), "alice", Request{PersonaID: "ada", Message: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", res.Reply)
	assert.Empty(t, res.ConversationID)
	assert.EqualError(t, res.SaveErr, "firestore unavailable")
}

func TestSendMessageAccessDenied(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{reply: "never"}
	svc := newTestService(store, gen)

	_, err := svc.SendMessage(context.Background(), "mallory", Request{PersonaID: "ada", Message: "Hello"})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Empty(t, store.saved)
	assert.Empty(t, gen.prompts)
}

func TestSendMessageNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeGenerator{reply: "x"})
	_, err := svc.SendMessage(context.Background(), "alice", Request{PersonaID: "missing", Message: "Hello"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendMessageWithoutGenerator(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)
	assert.False(t, svc.GenerationEnabled())

	_, err := svc.SendMessage(context.Background(), "alice", Request{PersonaID: "ada", Message: "Hello"})
	assert.ErrorIs(t, err, ErrGenerationDisabled)
}

func TestSendMessageRejectsBlankReply(t *testing.T) {
	for _, reply := range []string{"", "  \n\t "} {
		store := &fakeStore{}
		svc := newTestService(store, &fakeGenerator{reply: reply})

		res, err := svc.SendMessage(context.Background(), "alice", Request{PersonaID: "ada", Message: "Hello"})
		require.Error(t, err, "reply %q", reply)
		assert.ErrorIs(t, err, ErrGenerationFailed)
		assert.Nil(t, res)
		assert.Empty(t, store.saved)
	}
}

func TestSendMessageGenerationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"api key", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid. Please pass a valid API key."}, ErrGenerationAuth},
		{"quota", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "You exceeded your current quota"}, ErrGenerationQuota},
		{"rate status only", &genai.APIError{Code: 429, Message: "slow down"}, ErrGenerationQuota},
		{"model", genai.APIError{Code: 404, Status: "NOT_FOUND", Message: "models/gemini-x is not found for API version v1beta"}, ErrModelUnavailable},
		{"unsupported", errors.New("model is not supported for generateContent"), ErrModelUnavailable},
		{"empty", errEmptyReply, ErrGenerationFailed},
		{"other", errors.New("connection reset"), ErrGenerationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := newTestService(store, &fakeGenerator{err: tt.err})

			_, err := svc.SendMessage(context.Background(), "alice", Request{PersonaID: "ada", Message: "Hello"})
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, store.saved)
		})
	}
}

func TestListConversationsLimits(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, &fakeGenerator{reply: "r"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, "alice", Request{PersonaID: "ada", Message: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	conversations, err := svc.ListConversations(ctx, "alice", "ada", 2)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "m2", conversations[0].Messages[0].Content)

	_, err = svc.ListConversations(ctx, "alice", "ada", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultConversationLimit, store.lastLimit)

	_, err = svc.ListConversations(ctx, "alice", "ada", 500)
	require.NoError(t, err)
	assert.Equal(t, MaxConversationLimit, store.lastLimit)

	others, err := svc.ListConversations(ctx, "bob", "ada", 10)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestListConversationsIndexBuilding(t *testing.T) {
	store := &fakeStore{listErr: status.Error(codes.FailedPrecondition, "The query requires an index.")}
	svc := newTestService(store, nil)

	_, err := svc.ListConversations(context.Background(), "alice", "ada", 10)
	assert.ErrorIs(t, err, ErrStoreNotReady)

	store.listErr = errors.New("boom")
	_, err = svc.ListConversations(context.Background(), "alice", "ada", 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreNotReady)
}

func TestBuildPromptWithHistory(t *testing.T) {
	history := []domain.Message{
		{Role: domain.RoleUser, Content: "Who are you?"},
		{Role: domain.RoleAssistant, Content: "A historian."},
	}

	prompt := BuildPrompt(ada, history, "Tell me more")

	assert.Contains(t, prompt, "Description: A historian")
	assert.Contains(t, prompt, "Personality and traits: witty")
	assert.Contains(t, prompt, "User: Who are you?\nAssistant: A historian.\n")
	assert.NotContains(t, prompt, noHistoryMarker)
	assert.Contains(t, prompt, `New message from the user: "Tell me more"`)
}
