package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tradeflow?sslmode=disable")
	t.Setenv("AUTH_SECRET", testSecret)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 168*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "tradeflow_session", cfg.Auth.CookieName)
	assert.Equal(t, int64(10<<20), cfg.Limits.UploadMaxBytes)
	assert.Equal(t, "0 0 1 * *", cfg.Quota.ResetSchedule)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Origins())
	assert.False(t, cfg.GoogleEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/tradeflow")
	t.Setenv("AUTH_SECRET", testSecret)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("RATE_LIMIT_RPS", "5")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Origins())
	assert.True(t, cfg.GoogleEnabled())
	assert.Equal(t, 5, cfg.Limits.RateLimitRPS)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing database", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"short secret", func(c *Config) { c.Auth.Secret = "short" }, "AUTH_SECRET"},
		{"relative base url", func(c *Config) { c.Server.BaseURL = "/app" }, "BASE_URL"},
		{"zero upload limit", func(c *Config) { c.Limits.UploadMaxBytes = 0 }, "UPLOAD_MAX_BYTES"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
	assert.NoError(t, validConfig().Validate())
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{BaseURL: "http://localhost:3000"},
		Database: DatabaseConfig{URL: "postgres://localhost/db"},
		Auth:     AuthConfig{Secret: testSecret, SessionTTL: time.Hour},
		Limits:   LimitsConfig{UploadMaxBytes: 1024},
	}
}
