package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/tradeflow-ai/tradeflow/internal/logging"
)

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	handler := NewCORSMiddleware([]string{"http://localhost:3000/"}).Handler(okHandler())

	req := httptest.NewRequest("GET", "/api/clients", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want http://localhost:3000", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := NewCORSMiddleware([]string{"http://localhost:3000"}).Handler(okHandler())

	tests := []struct {
		name   string
		origin string
		want   int
	}{
		{"allowed", "http://localhost:3000", http.StatusNoContent},
		{"suffix trick", "http://evil.localhost:3000", http.StatusForbidden},
		{"unknown", "https://example.org", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/clients", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.NewNop())
	handler := rl.Handler(okHandler())

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest("GET", "/api/clients", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first requests = %v, want 200s", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want %d", codes[2], http.StatusTooManyRequests)
	}

	// Another client has its own bucket.
	req := httptest.NewRequest("GET", "/api/clients", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client = %d, want 200", rec.Code)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.NewNop())
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.getLimiter("ip:a")

	now = now.Add(2 * time.Hour)
	rl.getLimiter("ip:b")

	if removed := rl.Cleanup(time.Hour); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
}

func TestLoggingMiddleware_SetsTraceID(t *testing.T) {
	var traceID string
	handler := LoggingMiddleware(logging.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = logging.GetTraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/api/clients", nil)
	req.Header.Set("X-Trace-ID", "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if traceID != "abc" {
		t.Errorf("trace id = %q, want abc", traceID)
	}
	if rec.Header().Get("X-Trace-ID") != "abc" {
		t.Errorf("response trace header = %q", rec.Header().Get("X-Trace-ID"))
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware())
	r.Handle("/api/clients", okHandler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/clients", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
}
