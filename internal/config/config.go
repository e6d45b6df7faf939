// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Store drivers.
const (
	StoreSQLite    = "sqlite"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

// Default origins that are always allowed for local frontend development.
var devOrigins = []string{"http://localhost:3000", "http://localhost:3001"}

// Config holds all application configuration.
type Config struct {
	Port              string
	Env               string
	FirebaseProjectID string
	LogLevel          string
	Store             StoreConfig
	Gemini            GeminiConfig
	CORSOrigin        string
	CORSOrigins       []string
	// InterviewRateLimit is the number of interview messages a user may send per minute. 0 disables limiting.
	InterviewRateLimit int
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver      string
	DBPath      string
	DatabaseURL string
}

// GeminiConfig configures the text-generation API client.
type GeminiConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	maxTokens := getEnvInt("GEMINI_MAX_TOKENS", 1000)
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               strings.ToLower(getEnv("APP_ENV", "development")),
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
			DBPath:      getEnv("DB_PATH", "./data/personas.db"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Gemini: GeminiConfig{
			APIKey:    getEnv("GEMINI_API_KEY", ""),
			Model:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			MaxTokens: maxTokens,
			BaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		},
		CORSOrigin:         getEnv("CORS_ORIGIN", "http://localhost:3000"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		InterviewRateLimit: getEnvInt("INTERVIEW_RATE_LIMIT", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.FirebaseProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID cannot be empty")
	}
	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreFirestore:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if c.InterviewRateLimit < 0 {
		return fmt.Errorf("INTERVIEW_RATE_LIMIT must be >= 0")
	}
	return nil
}

// IsDevelopment returns true unless running in production.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// GenerationEnabled reports whether an API key for text generation is configured.
func (c *Config) GenerationEnabled() bool {
	return c.Gemini.APIKey != ""
}

// ListenAddr returns the address the HTTP server binds to.
// Production binds all interfaces for container platforms.
func (c *Config) ListenAddr() string {
	if c.IsDevelopment() {
		return "localhost:" + c.Port
	}
	return "0.0.0.0:" + c.Port
}

// AllowedOrigins returns the CORS allow-list: local dev origins plus configured ones, deduplicated.
func (c *Config) AllowedOrigins() []string {
	seen := make(map[string]bool)
	var origins []string
	add := func(o string) {
		if o == "" || seen[o] {
			return
		}
		seen[o] = true
		origins = append(origins, o)
	}
	for _, o := range devOrigins {
		add(o)
	}
	for _, o := range c.CORSOrigins {
		add(o)
	}
	add(c.CORSOrigin)
	return origins
}

// SlogLevel converts LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
