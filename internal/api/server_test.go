package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/ashureev/persona-lab/internal/identity"
	"github.com/ashureev/persona-lab/internal/interview"
	"github.com/ashureev/persona-lab/internal/persona"
	"github.com/ashureev/persona-lab/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const testProject = "demo-project"

// Bearer tokens understood by tokenVerifier.
const (
	tokenAlice        = "alice-token"
	tokenBob          = "bob-token"
	tokenOtherProject = "other-project-token"
)

type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (*identity.Identity, error) {
	switch token {
	case tokenAlice:
		return &identity.Identity{UID: "alice", Email: "alice@example.com", Audience: testProject, AuthTime: time.Unix(1700000000, 0).UTC()}, nil
	case tokenBob:
		return &identity.Identity{UID: "bob", Email: "bob@example.com", Audience: testProject}, nil
	case tokenOtherProject:
		return &identity.Identity{UID: "mallory", Audience: "other-project"}, nil
	default:
		return nil, &identity.VerifyError{Code: identity.CodeInvalidIDToken, Message: "Firebase ID token has invalid signature"}
	}
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return "Hello from the persona", nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// flakyConversations fails conversation writes while failSaves is set.
type flakyConversations struct {
	*store.SQLStore
	mu        sync.Mutex
	failSaves bool
}

func (f *flakyConversations) CreateConversation(ctx context.Context, c *domain.Conversation) (string, error) {
	f.mu.Lock()
	fail := f.failSaves
	f.mu.Unlock()
	if fail {
		return "", errors.New("disk full")
	}
	return f.SQLStore.CreateConversation(ctx, c)
}

type testServer struct {
	router    http.Handler
	repo      *store.SQLStore
	convs     *flakyConversations
	generator *fakeGenerator
}

type serverOption func(*serverOptions)

type serverOptions struct {
	noGenerator bool
	limiter     func(http.Handler) http.Handler
	isDev       bool
}

func withoutGenerator() serverOption {
	return func(o *serverOptions) { o.noGenerator = true }
}

func withLimiter(l func(http.Handler) http.Handler) serverOption {
	return func(o *serverOptions) { o.limiter = l }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	convs := &flakyConversations{SQLStore: repo}
	gen := &fakeGenerator{}

	var generator interview.Generator = gen
	if o.noGenerator {
		generator = nil
	}

	personaSvc := persona.NewService(repo)
	interviewSvc := interview.NewService(personaSvc, convs, generator)

	base := NewHandler(o.isDev)
	r := chi.NewRouter()
	r.Get("/", base.Root)
	NewHealthHandler(repo, interviewSvc.GenerationEnabled()).RegisterHealth(r)
	r.Get("/api/test", base.Test)
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(tokenVerifier{}, testProject, o.isDev))
		NewUserHandler(base, repo).RegisterRoutes(r)
		NewPersonaHandler(base, personaSvc).RegisterRoutes(r)
		NewInterviewHandler(base, interviewSvc, o.limiter).RegisterRoutes(r)
	})
	r.NotFound(base.NotFound)

	return &testServer{router: r, repo: repo, convs: convs, generator: gen}
}

// do sends a request with an optional bearer token and JSON body.
func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details any             `json:"details"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
	return env
}

func (s *testServer) createPersona(t *testing.T, token, name string) *domain.Persona {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/personas", token, map[string]any{
		"name":        name,
		"description": "A seasoned product manager",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p domain.Persona
	decodeData(t, w, &p)
	return &p
}
