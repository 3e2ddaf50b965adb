package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeflow-ai/tradeflow/internal/config"
	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/google"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.BaseURL = "http://localhost:3000"
	cfg.Server.AllowedOrigins = "http://localhost:3000"
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Auth.Secret = "test-secret-that-is-at-least-32-bytes"
	cfg.Auth.SessionTTL = time.Hour
	cfg.Auth.CookieName = "tradeflow_session"
	cfg.Limits.RateLimitRPS = 10
	cfg.Limits.RateLimitBurst = 20
	cfg.Limits.UploadMaxBytes = 1 << 20
	cfg.Limits.JSONMaxBytes = 1 << 20
	cfg.Quota.ResetSchedule = "0 0 1 * *"
	return cfg
}

func TestBuildRegistersJobs(t *testing.T) {
	repo := database.NewMockRepository()
	a, err := build(testConfig(), nil, repo, google.NewDBStateStore(repo))
	require.NoError(t, err)

	for _, job := range []string{JobQuotaReset, JobAuthCleanup, JobRateLimitCleanup} {
		_, ok := a.Scheduler().Next(job)
		assert.True(t, ok, job)
	}
}

func TestBuildWithoutRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.RateLimitRPS = 0
	repo := database.NewMockRepository()
	a, err := build(cfg, nil, repo, google.NewDBStateStore(repo))
	require.NoError(t, err)

	_, ok := a.Scheduler().Next(JobRateLimitCleanup)
	assert.False(t, ok)
}

func TestBuildRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Quota.ResetSchedule = "every full moon"
	repo := database.NewMockRepository()
	_, err := build(cfg, nil, repo, google.NewDBStateStore(repo))
	assert.Error(t, err)
}

func TestBuildRejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Secret = "short"
	repo := database.NewMockRepository()
	_, err := build(cfg, nil, repo, google.NewDBStateStore(repo))
	assert.Error(t, err)
}

func TestHandlerServesHealth(t *testing.T) {
	repo := database.NewMockRepository()
	a, err := build(testConfig(), nil, repo, google.NewDBStateStore(repo))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGoogleDisabledWithoutCredentials(t *testing.T) {
	repo := database.NewMockRepository()
	a, err := build(testConfig(), nil, repo, google.NewDBStateStore(repo))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, google.CallbackPath+"?state=x&code=y", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunAndShutdown(t *testing.T) {
	repo := database.NewMockRepository()
	a, err := build(testConfig(), nil, repo, google.NewDBStateStore(repo))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	require.NoError(t, <-done)
	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestSecureBaseURL(t *testing.T) {
	assert.True(t, secureBaseURL("https://app.tradeflow.ai"))
	assert.False(t, secureBaseURL("http://localhost:3000"))
	assert.False(t, secureBaseURL("::"))
}
