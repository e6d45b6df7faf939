package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/ashureev/persona-lab/internal/identity"
	"github.com/ashureev/persona-lab/internal/interview"
	"github.com/stretchr/testify/assert"
)

func TestProviderStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ProviderStatus("auth/user-not-found"))
	assert.Equal(t, http.StatusConflict, ProviderStatus("auth/email-already-exists"))
	assert.Equal(t, http.StatusUnauthorized, ProviderStatus(identity.CodeIDTokenRevoked))
	assert.Equal(t, http.StatusInternalServerError, ProviderStatus("auth/something-new"))
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{name: "not found", err: fmt.Errorf("lookup: %w", domain.ErrNotFound), status: 404, code: CodeNotFound, message: "Resource not found"},
		{name: "access denied", err: domain.ErrAccessDenied, status: 403, code: CodeAccessDenied, message: "Access denied"},
		{name: "verify error", err: &identity.VerifyError{Code: identity.CodeUserDisabled, Message: "user disabled"}, status: 401, code: identity.CodeUserDisabled, message: "user disabled"},
		{name: "index building", err: fmt.Errorf("%w: building", interview.ErrStoreNotReady), status: 503, code: CodeUnavailable, message: msgStoreNotReady},
		{name: "app error", err: NewAppError(http.StatusConflict, "Conflict", "resource/conflict"), status: 409, code: "resource/conflict", message: "Conflict"},
		{name: "unknown", err: errors.New("boom"), status: 500, code: CodeInternal, message: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHandler(false).WriteError(w, httptest.NewRequest(http.MethodGet, "/x", nil), tt.err)

			assert.Equal(t, tt.status, w.Code)
			env := decodeEnvelope(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.message, env.Error)
		})
	}
}

func TestWriteErrorDetailsOnlyInDevelopment(t *testing.T) {
	err := errors.New("database exploded")

	w := httptest.NewRecorder()
	NewHandler(false).WriteError(w, httptest.NewRequest(http.MethodGet, "/x", nil), err)
	assert.Nil(t, decodeEnvelope(t, w).Details)

	w = httptest.NewRecorder()
	NewHandler(true).WriteError(w, httptest.NewRequest(http.MethodGet, "/x", nil), err)
	details, _ := decodeEnvelope(t, w).Details.(string)
	assert.True(t, strings.Contains(details, "database exploded"))
}

func TestDecodeRejectsOversizedBody(t *testing.T) {
	s := newTestServer(t)

	body := `{"name":"a","description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	w := s.do(t, http.MethodPost, "/api/personas", tokenAlice, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
