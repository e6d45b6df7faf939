package interview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Generator produces a reply for a fully rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// errEmptyReply is returned when the model answers without text.
var errEmptyReply = errors.New("empty response from generation api")

// apiStatus returns the HTTP status of a generation API error, or 0.
func apiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

// classifyGenerationError maps an upstream failure onto the generation sentinels.
// The upstream message is kept in the chain for diagnostics.
func classifyGenerationError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	msg := strings.ToLower(err.Error())
	status := apiStatus(err)

	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "api_key"):
		return fmt.Errorf("%w: %v", ErrGenerationAuth, err)
	case strings.Contains(msg, "quota") || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrGenerationQuota, err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "not supported"):
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
}

// outcome names a generation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrGenerationAuth):
		return "auth"
	case errors.Is(err, ErrGenerationQuota):
		return "quota"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	default:
		return "failed"
	}
}
