package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 1000, cfg.Gemini.MaxTokens)
	assert.Equal(t, 20, cfg.InterviewRateLimit)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "localhost:8080", cfg.ListenAddr())
}

func TestLoadRequiresProjectID(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIREBASE_PROJECT_ID")
}

func TestValidateStoreDriver(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr bool
	}{
		{name: "sqlite", store: StoreConfig{Driver: StoreSQLite, DBPath: "x.db"}},
		{name: "sqlite without path", store: StoreConfig{Driver: StoreSQLite}, wantErr: true},
		{name: "postgres without url", store: StoreConfig{Driver: StorePostgres}, wantErr: true},
		{name: "postgres", store: StoreConfig{Driver: StorePostgres, DatabaseURL: "postgres://x"}},
		{name: "firestore", store: StoreConfig{Driver: StoreFirestore}},
		{name: "unknown", store: StoreConfig{Driver: "mongo"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Port: "8080", FirebaseProjectID: "p", Store: tt.store, Gemini: GeminiConfig{Model: "m"}}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{
		CORSOrigin:  "https://app.example.com",
		CORSOrigins: []string{"http://localhost:3000", "https://admin.example.com"},
	}

	assert.Equal(t, []string{
		"http://localhost:3000",
		"http://localhost:3001",
		"https://admin.example.com",
		"https://app.example.com",
	}, cfg.AllowedOrigins())
}

func TestProductionListenAddr(t *testing.T) {
	cfg := &Config{Port: "9000", Env: "production"}
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr())
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warn"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "nonsense"}).SlogLevel())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}
