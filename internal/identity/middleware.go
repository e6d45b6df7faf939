package identity

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/persona-lab/internal/metrics"
)

type authFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// Middleware rejects requests without a valid bearer token for projectID and
// attaches the verified identity to the request context.
func Middleware(verifier TokenVerifier, projectID string, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthFailure(w, http.StatusUnauthorized, authFailure{
					Error: "Authorization header is missing",
					Code:  CodeMissingAuthHeader,
				})
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				writeAuthFailure(w, http.StatusUnauthorized, authFailure{
					Error: "Invalid authorization header format. Expected: Bearer <token>",
					Code:  CodeInvalidAuthHeader,
				})
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				slog.Warn("Token verification failed", "error", err, "path", r.URL.Path, "ip", IPFromRequest(r))
				status, failure := verifyFailure(err, projectID, isDev)
				writeAuthFailure(w, status, failure)
				return
			}

			if id.Audience != projectID {
				slog.Error("Project ID mismatch", "expected", projectID, "received", id.Audience)
				failure := authFailure{
					Error: "Firebase project ID mismatch. Make sure both frontend and backend are using the same Firebase project.",
					Code:  CodeProjectIDMismatch,
				}
				if isDev {
					failure.Details = map[string]string{"expected": projectID, "received": id.Audience}
				}
				writeAuthFailure(w, http.StatusUnauthorized, failure)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func verifyFailure(err error, projectID string, isDev bool) (int, authFailure) {
	var verr *VerifyError
	if !errors.As(err, &verr) || verr.Code == "" {
		return http.StatusUnauthorized, authFailure{Error: "Token verification failed", Code: CodeInvalidToken}
	}

	failure := authFailure{Error: verr.Message, Code: verr.Code}
	if failure.Error == "" {
		failure.Error = "Token verification failed"
	}
	if isDev && verr.Code == CodeArgumentError && verr.Message == InvalidSignatureMessage {
		failure.Details = map[string]string{
			"backendProjectId": projectID,
			"hint":             "Check that FIREBASE_PROJECT_ID of the backend matches the Firebase project the frontend signs in to",
		}
	}
	return verr.Status(), failure
}

func writeAuthFailure(w http.ResponseWriter, status int, failure authFailure) {
	metrics.RecordAuthFailure(failure.Code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(failure)
}
