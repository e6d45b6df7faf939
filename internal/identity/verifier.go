package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Auth error codes.
const (
	CodeMissingAuthHeader = "auth/missing-auth-header"
	CodeInvalidAuthHeader = "auth/invalid-auth-header"
	CodeProjectIDMismatch = "auth/project-id-mismatch"
	CodeIDTokenExpired    = "auth/id-token-expired"
	CodeIDTokenRevoked    = "auth/id-token-revoked"
	CodeInvalidIDToken    = "auth/invalid-id-token"
	CodeUserDisabled      = "auth/user-disabled"
	CodeArgumentError     = "auth/argument-error"
	CodeInvalidToken      = "auth/invalid-token"
	CodeInternalError     = "auth/internal-error"
)

// InvalidSignatureMessage is reported when a token was not signed by a known key,
// which usually means the client signed in against a different project.
const InvalidSignatureMessage = "Firebase ID token has invalid signature. This usually means the frontend and backend are using different Firebase projects."

const issuerPrefix = "https://securetoken.google.com/"

// VerifyError is a token verification failure with a provider error code.
type VerifyError struct {
	Code    string
	Message string
	Err     error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the failure.
func (e *VerifyError) Status() int {
	if e.Code == CodeInternalError {
		return http.StatusInternalServerError
	}
	return http.StatusUnauthorized
}

// TokenVerifier verifies a bearer token and returns the caller it identifies.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type firebaseClaims struct {
	jwt.RegisteredClaims
	AuthTime      int64  `json:"auth_time"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// FirebaseVerifier verifies RS256 Firebase ID tokens against published signing keys.
// The audience is returned to the caller, which compares it with the configured project.
type FirebaseVerifier struct {
	keys KeySource
	now  func() time.Time
}

// NewFirebaseVerifier creates a verifier resolving signing keys from keys.
func NewFirebaseVerifier(keys KeySource) *FirebaseVerifier {
	return &FirebaseVerifier{keys: keys, now: time.Now}
}

// Verify checks the token's signature, lifetime and Firebase claims.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	claims := &firebaseClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New(`token has no "kid" header`)
		}
		return v.keys.PublicKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}

	if err := v.checkClaims(claims); err != nil {
		return nil, &VerifyError{Code: CodeInvalidIDToken, Message: err.Error()}
	}

	id := &Identity{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
		Issuer:        claims.Issuer,
		Audience:      claims.Audience[0],
		AuthTime:      time.Unix(claims.AuthTime, 0).UTC(),
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return id, nil
}

func (v *FirebaseVerifier) checkClaims(c *firebaseClaims) error {
	if len(c.Audience) != 1 || c.Audience[0] == "" {
		return errors.New(`Firebase ID token has no "aud" claim`)
	}
	if c.Issuer != issuerPrefix+c.Audience[0] {
		return fmt.Errorf(`Firebase ID token has incorrect "iss" claim %q`, c.Issuer)
	}
	if c.Subject == "" {
		return errors.New(`Firebase ID token has an empty "sub" claim`)
	}
	if len(c.Subject) > 128 {
		return errors.New(`Firebase ID token has "sub" claim longer than 128 characters`)
	}
	if c.AuthTime == 0 || time.Unix(c.AuthTime, 0).After(v.now()) {
		return errors.New(`Firebase ID token has invalid "auth_time" claim`)
	}
	return nil
}

func classifyParseError(err error) *VerifyError {
	switch {
	case errors.Is(err, ErrKeysUnavailable):
		return &VerifyError{Code: CodeInternalError, Message: "Failed to fetch token signing keys", Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &VerifyError{Code: CodeInvalidIDToken, Message: "Invalid token format", Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &VerifyError{Code: CodeIDTokenExpired, Message: "Token has expired", Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrUnknownKey):
		return &VerifyError{Code: CodeArgumentError, Message: InvalidSignatureMessage, Err: err}
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenInvalidClaims):
		return &VerifyError{Code: CodeInvalidIDToken, Message: trimJWTPrefix(err), Err: err}
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return &VerifyError{Code: CodeArgumentError, Message: trimJWTPrefix(err), Err: err}
	default:
		return &VerifyError{Code: CodeInvalidToken, Message: "Token verification failed", Err: err}
	}
}

func trimJWTPrefix(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		return msg[i+2:]
	}
	return msg
}

// staticKeys adapts a fixed key set to KeySource.
type staticKeys map[string]*rsa.PublicKey

func (k staticKeys) PublicKey(_ context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := k[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}
	return key, nil
}

// StaticKeySource returns a KeySource serving a fixed set of keys,
// for emulators and tests.
func StaticKeySource(keys map[string]*rsa.PublicKey) KeySource {
	return staticKeys(keys)
}
