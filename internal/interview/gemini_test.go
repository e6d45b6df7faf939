package interview

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/persona-lab/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewGeminiClient(context.Background(), config.GeminiConfig{
		APIKey:    "test-key",
		Model:     "gemini-2.5-flash",
		MaxTokens: 256,
		BaseURL:   srv.URL,
	})
	require.NoError(t, err)
	return c
}

func TestGeminiGenerate(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-2.5-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "Say hi", gjson.GetBytes(raw, "contents.0.parts.0.text").String())
		assert.Equal(t, int64(256), gjson.GetBytes(raw, "generationConfig.maxOutputTokens").Int())
		budget := gjson.GetBytes(raw, "generationConfig.thinkingConfig.thinkingBudget")
		assert.True(t, budget.Exists())
		assert.Equal(t, int64(0), budget.Int())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"there"}]},"finishReason":"STOP"}]}`))
	})

	reply, err := c.Generate(context.Background(), "Say hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)
}

func TestGeminiAPIError(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := c.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apiStatus(err))
	assert.ErrorIs(t, classifyGenerationError(err), ErrGenerationAuth)
}

func TestGeminiQuotaError(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := c.Generate(context.Background(), "x")
	assert.ErrorIs(t, classifyGenerationError(err), ErrGenerationQuota)
}

func TestGeminiEmptyReply(t *testing.T) {
	for _, body := range []string{
		`{"candidates":[{"finishReason":"SAFETY"}]}`,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"  \n "}]},"finishReason":"STOP"}]}`,
	} {
		c := newTestGemini(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})

		_, err := c.Generate(context.Background(), "x")
		assert.ErrorIs(t, err, errEmptyReply, body)
	}
}

func TestAPIStatus(t *testing.T) {
	assert.Equal(t, 404, apiStatus(genai.APIError{Code: 404}))
	assert.Equal(t, 429, apiStatus(&genai.APIError{Code: 429}))
	assert.Zero(t, apiStatus(errors.New("plain")))
}
