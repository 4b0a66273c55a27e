package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "admin@blockland.com", cfg.AdminEmail)
	assert.Equal(t, "admin123", cfg.AdminPassword)
	assert.Equal(t, 2*time.Second, cfg.Verification.DocumentDelay)
	assert.Equal(t, 3*time.Second, cfg.Verification.NotaryDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Verification.Tick)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/landledger")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("VERIFY_TICK_MS", "20")
	t.Setenv("S3_BUCKET", "docs")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 20*time.Millisecond, cfg.Verification.Tick)
	assert.Equal(t, "docs", cfg.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "http"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}},
		{"redis without url", map[string]string{"STORE_BACKEND": "redis", "REDIS_URL": ""}},
		{"production without secret", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": ""}},
		{"zero session ttl", map[string]string{"SESSION_TTL_MINUTES": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
