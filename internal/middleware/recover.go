package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type failureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeFailure(w http.ResponseWriter, status int, body failureBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Recover turns panics into a 500 JSON error response.
// The stack is logged, and returned only when isDev is set.
func Recover(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := string(debug.Stack())
				slog.Error("Panic recovered",
					"panic", rec,
					"method", r.Method,
					"url", r.URL.String(),
					"request_id", chiMiddleware.GetReqID(r.Context()),
					"stack", stack,
				)

				body := failureBody{Error: "Internal server error", Code: "server/internal-error"}
				if isDev {
					body.Details = stack
				}
				writeFailure(w, http.StatusInternalServerError, body)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
