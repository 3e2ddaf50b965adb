package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tradeflow-ai/tradeflow/internal/auth"
	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuth(t *testing.T) (*auth.Service, *database.MockRepository) {
	t.Helper()
	tokens, err := auth.NewTokenManager(testSecret)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	repo := database.NewMockRepository()
	return auth.NewService(repo, tokens, time.Hour, logging.NewNop()), repo
}

func signUp(t *testing.T, svc *auth.Service) *auth.Result {
	t.Helper()
	res, err := svc.SignUp(context.Background(), auth.SignUpInput{
		Name:     "Test User",
		Email:    "test@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	return res
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewAuthMiddleware(t *testing.T) {
	svc, _ := newTestAuth(t)
	logger := logging.NewNop()
	skipPaths := []string{"/health", "/metrics"}

	middleware := NewAuthMiddleware(svc, "sid", logger, skipPaths)

	if middleware == nil {
		t.Fatal("NewAuthMiddleware() returned nil")
	}
	if middleware.logger != logger {
		t.Error("logger not set correctly")
	}
	if len(middleware.skipPaths) != 2 {
		t.Errorf("skipPaths length = %d, want 2", len(middleware.skipPaths))
	}
	if !middleware.skipPaths["/health"] {
		t.Error("skipPaths does not contain /health")
	}
}

func TestAuthMiddleware_Handler_SkipPaths(t *testing.T) {
	svc, _ := newTestAuth(t)
	handler := NewAuthMiddleware(svc, "sid", logging.NewNop(), []string{"/health"}).Handler(okHandler())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Handler_MissingToken(t *testing.T) {
	svc, _ := newTestAuth(t)
	handler := NewAuthMiddleware(svc, "sid", logging.NewNop(), nil).Handler(okHandler())

	req := httptest.NewRequest("GET", "/api/clients", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Authentication required" {
		t.Errorf("error = %v, want Authentication required", body["error"])
	}
}

func TestAuthMiddleware_Handler_InvalidAuthHeader(t *testing.T) {
	svc, _ := newTestAuth(t)
	handler := NewAuthMiddleware(svc, "sid", logging.NewNop(), nil).Handler(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"wrong prefix", "Basic token123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer invalid.token.here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/clients", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_Handler_ValidToken(t *testing.T) {
	svc, _ := newTestAuth(t)
	res := signUp(t, svc)

	var capturedUserID, capturedSessionID string
	handler := NewAuthMiddleware(svc, "sid", logging.NewNop(), nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = GetUserID(r.Context())
		capturedSessionID = logging.GetSessionID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/clients", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if capturedUserID != res.User.ID {
		t.Errorf("User ID = %v, want %v", capturedUserID, res.User.ID)
	}
	if capturedSessionID != res.Session.ID {
		t.Errorf("Session ID = %v, want %v", capturedSessionID, res.Session.ID)
	}
}

func TestAuthMiddleware_Handler_CookieToken(t *testing.T) {
	svc, _ := newTestAuth(t)
	res := signUp(t, svc)
	handler := NewAuthMiddleware(svc, "sid", logging.NewNop(), nil).Handler(okHandler())

	req := httptest.NewRequest("GET", "/api/clients", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: res.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Handler_RevokedSession(t *testing.T) {
	svc, _ := newTestAuth(t)
	res := signUp(t, svc)
	if err := svc.SignOut(context.Background(), res.Token); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	handler := NewAuthMiddleware(svc, "sid", logging.NewNop(), nil).Handler(okHandler())

	req := httptest.NewRequest("GET", "/api/clients", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_Handler_PreservesTraceID(t *testing.T) {
	svc, _ := newTestAuth(t)
	res := signUp(t, svc)

	var capturedTraceID string
	handler := NewAuthMiddleware(svc, "sid", logging.NewNop(), nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedTraceID = logging.GetTraceID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/clients", nil)
	req = req.WithContext(logging.WithTraceID(req.Context(), "trace-456"))
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if capturedTraceID != "trace-456" {
		t.Errorf("Trace ID = %v, want trace-456", capturedTraceID)
	}
}

func TestRequireUserID(t *testing.T) {
	handler := RequireUserID(okHandler())

	tests := []struct {
		name       string
		ctx        context.Context
		wantStatus int
	}{
		{"with user ID", logging.WithUserID(context.Background(), "user-123"), http.StatusOK},
		{"without user ID", context.Background(), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/test", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"code":"UNAUTHORIZED"`) {
				t.Errorf("Body = %s, want UNAUTHORIZED code", rec.Body.String())
			}
		})
	}
}
