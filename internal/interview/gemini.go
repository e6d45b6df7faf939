package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/persona-lab/internal/config"
	"google.golang.org/genai"
)

// GeminiClient generates replies through the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// NewGeminiClient creates a client from cfg. Requests carry no timeout of
// their own: a started generation runs until the API answers.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimSuffix(cfg.BaseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		model:     cfg.Model,
		maxTokens: int32(cfg.MaxTokens),
	}, nil
}

// Generate sends prompt as a single user turn and returns the reply text.
// Thinking is disabled so the whole token budget goes to the answer.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: c.maxTokens,
		ThinkingConfig:  &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		attrs := []any{"model", c.model}
		if len(resp.Candidates) > 0 {
			attrs = append(attrs, "finish_reason", resp.Candidates[0].FinishReason)
		}
		if resp.PromptFeedback != nil {
			attrs = append(attrs, "block_reason", resp.PromptFeedback.BlockReason)
		}
		slog.Warn("Generation returned no text", attrs...)
		return "", errEmptyReply
	}
	return text, nil
}

var _ Generator = (*GeminiClient)(nil)
