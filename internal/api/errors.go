package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/ashureev/persona-lab/internal/identity"
	"github.com/ashureev/persona-lab/internal/interview"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// AppError is an error with an explicit HTTP status and envelope fields.
type AppError struct {
	Status  int
	Message string
	Code    string
	Details any
	Err     error
}

// NewAppError creates an AppError.
func NewAppError(status int, message, code string) *AppError {
	return &AppError{Status: status, Message: message, Code: code}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// providerStatus maps identity provider error codes to HTTP statuses.
var providerStatus = map[string]int{
	"auth/user-not-found":                  404,
	"auth/invalid-uid":                     400,
	"auth/invalid-email":                   400,
	"auth/email-already-exists":            409,
	"auth/phone-number-already-exists":     409,
	"auth/uid-already-exists":              409,
	"auth/insufficient-permission":         403,
	"auth/internal-error":                  500,
	"auth/invalid-argument":                400,
	"auth/invalid-claims":                  400,
	"auth/invalid-creation-time":           400,
	"auth/invalid-credential":              400,
	"auth/invalid-disabled-field":          400,
	"auth/invalid-display-name":            400,
	"auth/invalid-email-verified":          400,
	"auth/invalid-hash-algorithm":          400,
	"auth/invalid-hash-block-size":         400,
	"auth/invalid-hash-derived-key-length": 400,
	"auth/invalid-hash-key":                400,
	"auth/invalid-hash-memory-cost":        400,
	"auth/invalid-hash-parallelization":    400,
	"auth/invalid-hash-rounds":             400,
	"auth/invalid-hash-salt-separator":     400,
	"auth/invalid-last-sign-in-time":       400,
	"auth/invalid-page-token":              400,
	"auth/invalid-password":                400,
	"auth/invalid-password-hash":           400,
	"auth/invalid-password-salt":           400,
	"auth/invalid-phone-number":            400,
	"auth/invalid-photo-url":               400,
	"auth/invalid-provider-data":           400,
	"auth/invalid-provider-id":             400,
	"auth/invalid-session-cookie-duration": 400,
	"auth/invalid-user-import":             400,
	"auth/maximum-user-count-exceeded":     429,
	"auth/missing-hash-algorithm":          400,
	"auth/missing-uid":                     400,
	"auth/operation-not-allowed":           403,
	"auth/project-not-found":               404,
	"auth/reserved-claims":                 400,
	"auth/session-cookie-expired":          401,
	"auth/session-cookie-revoked":          401,
	"auth/unauthorized-continue-uri":       400,
	"auth/too-many-requests":               429,
	identity.CodeIDTokenExpired:            401,
	identity.CodeIDTokenRevoked:            401,
	identity.CodeInvalidIDToken:            401,
	identity.CodeUserDisabled:              401,
	identity.CodeArgumentError:             401,
	identity.CodeInvalidToken:              401,
	identity.CodeProjectIDMismatch:         401,
	identity.CodeMissingAuthHeader:         401,
	identity.CodeInvalidAuthHeader:         401,
}

// providerMessages holds friendlier messages for common provider codes.
var providerMessages = map[string]string{
	"auth/user-not-found":          "User not found",
	"auth/invalid-email":           "Invalid email address",
	"auth/email-already-exists":    "This email address is already in use",
	"auth/insufficient-permission": "Insufficient permission",
	"auth/too-many-requests":       "Too many requests",
	"auth/session-cookie-expired":  "Session has expired",
	"auth/session-cookie-revoked":  "Session has been revoked",
}

// Generation failures surfaced to clients.
const (
	msgGenerationAuth     = "Gemini API key is invalid or missing. Please check GEMINI_API_KEY environment variable."
	msgGenerationQuota    = "Gemini API quota exceeded"
	msgModelUnavailable   = "Gemini model not available. Please check if the model name is correct."
	msgGenerationFailed   = "Failed to generate AI response"
	msgGenerationDisabled = "Gemini API is not initialized. Please check server logs."
	msgStoreNotReady      = "Database index is being created. Please try again in a few minutes."
)

// ProviderStatus returns the HTTP status for an identity provider error code.
func ProviderStatus(code string) int {
	if status, ok := providerStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// classify converts err into the envelope it is reported with.
func (h *Handler) classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verr *identity.VerifyError
	if errors.As(err, &verr) {
		msg := verr.Message
		if m, ok := providerMessages[verr.Code]; ok {
			msg = m
		}
		return &AppError{Status: ProviderStatus(verr.Code), Message: msg, Code: verr.Code, Err: err}
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &AppError{Status: http.StatusNotFound, Message: "Resource not found", Code: CodeNotFound, Err: err}
	case errors.Is(err, domain.ErrAccessDenied):
		return &AppError{Status: http.StatusForbidden, Message: "Access denied", Code: CodeAccessDenied, Err: err}
	case errors.Is(err, interview.ErrGenerationQuota):
		return &AppError{Status: http.StatusTooManyRequests, Message: msgGenerationQuota, Code: CodeQuotaExceeded, Err: err}
	case errors.Is(err, interview.ErrGenerationDisabled):
		return &AppError{Status: http.StatusServiceUnavailable, Message: msgGenerationDisabled, Code: CodeUnavailable, Err: err}
	case errors.Is(err, interview.ErrStoreNotReady):
		return &AppError{Status: http.StatusServiceUnavailable, Message: msgStoreNotReady, Code: CodeUnavailable, Err: err}
	case errors.Is(err, interview.ErrGenerationAuth):
		return &AppError{Status: http.StatusInternalServerError, Message: "Internal server error", Code: CodeInternal, Details: msgGenerationAuth, Err: err}
	case errors.Is(err, interview.ErrModelUnavailable):
		return &AppError{Status: http.StatusInternalServerError, Message: "Internal server error", Code: CodeInternal, Details: msgModelUnavailable, Err: err}
	case errors.Is(err, interview.ErrGenerationFailed):
		return &AppError{Status: http.StatusInternalServerError, Message: "Internal server error", Code: CodeInternal, Details: generationFailure(err), Err: err}
	}

	return &AppError{Status: http.StatusInternalServerError, Message: "Internal server error", Code: CodeInternal, Err: err}
}

func generationFailure(err error) string {
	upstream := strings.TrimPrefix(err.Error(), interview.ErrGenerationFailed.Error()+": ")
	if upstream == err.Error() || upstream == "" {
		return msgGenerationFailed
	}
	return msgGenerationFailed + ": " + upstream
}

// WriteError logs err with request context and writes its envelope.
// Outside production, unclassified errors carry their stack in details.
func (h *Handler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := h.classify(err)

	attrs := []any{
		"status", appErr.Status,
		"method", r.Method,
		"url", r.URL.RequestURI(),
		"ip", identity.IPFromRequest(r),
		"user_agent", r.UserAgent(),
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"error", err,
	}
	if appErr.Status >= http.StatusInternalServerError {
		slog.Error("Request failed", attrs...)
	} else {
		slog.Warn("Request rejected", attrs...)
	}

	details := appErr.Details
	if details == nil && h.isDev && appErr.Status >= http.StatusInternalServerError {
		details = fmt.Sprintf("%+v", err)
	}
	Fail(w, appErr.Status, appErr.Message, appErr.Code, details)
}
