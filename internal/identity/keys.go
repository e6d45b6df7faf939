package identity

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// GoogleCertsURL publishes the x509 certificates that sign Firebase ID tokens.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const defaultKeyTTL = time.Hour

var (
	// ErrUnknownKey is returned when a token names a key id that is not published.
	ErrUnknownKey = errors.New("unknown signing key")

	// ErrKeysUnavailable is returned when the signing keys cannot be fetched.
	ErrKeysUnavailable = errors.New("signing keys unavailable")

	maxAgePattern = regexp.MustCompile(`max-age=(\d+)`)
)

// KeySource resolves the public key for a token's kid header.
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// GoogleKeySource fetches and caches Google's published signing certificates.
// The cache lifetime follows the Cache-Control max-age of the response.
type GoogleKeySource struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time

	refresh singleflight.Group
}

// NewGoogleKeySource creates a key source reading from url.
// An empty url selects GoogleCertsURL.
func NewGoogleKeySource(url string, client *http.Client) *GoogleKeySource {
	if url == "" {
		url = GoogleCertsURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleKeySource{
		url:    url,
		client: client,
		now:    time.Now,
	}
}

// PublicKey returns the key for kid, refreshing the cache once it expires.
func (s *GoogleKeySource) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	keys, fresh := s.keys, s.now().Before(s.expires)
	s.mu.RUnlock()

	if !fresh {
		// Concurrent requests share one fetch, which outlives any single caller.
		v, err, _ := s.refresh.Do("keys", func() (any, error) {
			return s.fetch(context.WithoutCancel(ctx))
		})
		switch {
		case err == nil:
			keys = v.(map[string]*rsa.PublicKey)
		case keys != nil:
			slog.Warn("Signing key refresh failed, using cached keys", "error", err)
		default:
			return nil, err
		}
	}

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}
	return key, nil
}

func (s *GoogleKeySource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrKeysUnavailable, resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return nil, fmt.Errorf("%w: decode certificates: %v", ErrKeysUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemCert := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemCert))
		if err != nil {
			slog.Warn("Skipping unparsable signing certificate", "kid", kid, "error", err)
			continue
		}
		keys[kid] = key
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no usable certificates", ErrKeysUnavailable)
	}

	ttl := cacheTTL(resp.Header.Get("Cache-Control"))

	s.mu.Lock()
	s.keys = keys
	s.expires = s.now().Add(ttl)
	s.mu.Unlock()

	slog.Debug("Refreshed token signing keys", "count", len(keys), "ttl", ttl)
	return keys, nil
}

func cacheTTL(cacheControl string) time.Duration {
	m := maxAgePattern.FindStringSubmatch(cacheControl)
	if m == nil {
		return defaultKeyTTL
	}
	seconds, err := strconv.Atoi(m[1])
	if err != nil || seconds <= 0 {
		return defaultKeyTTL
	}
	return time.Duration(seconds) * time.Second
}
