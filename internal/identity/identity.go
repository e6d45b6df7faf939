// Package identity authenticates requests with Firebase ID tokens and carries
// the verified caller on the request context.
package identity

import (
	"context"
	"net"
	"net/http"
	"time"
)

type contextKey int

const identityKey contextKey = iota

// Identity is the verified caller of a request. It is derived from the ID
// token on every request and never persisted.
type Identity struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	Name          string    `json:"name,omitempty"`
	Picture       string    `json:"picture,omitempty"`
	Issuer        string    `json:"issuer"`
	Audience      string    `json:"audience"`
	AuthTime      time.Time `json:"authTime"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the verified identity from the request context.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// UserIDFromContext extracts the caller's uid from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id.UID
	}
	return ""
}

// IPFromRequest returns a normalized remote IP for request logging.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
