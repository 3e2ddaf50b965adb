package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetUserID(ctx))

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithSessionID(ctx, "sess-1")

	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Equal(t, "sess-1", GetSessionID(ctx))
}

func TestLogRequestIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New("tradeflow", "debug", "json")
	logger.SetOutput(&buf)

	ctx := WithUserID(WithTraceID(context.Background(), "trace-42"), "user-7")
	logger.LogRequest(ctx, http.MethodGet, "/api/clients", http.StatusNotFound, 15*time.Millisecond)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tradeflow", entry["service"])
	assert.Equal(t, "trace-42", entry["trace_id"])
	assert.Equal(t, "user-7", entry["user_id"])
	assert.Equal(t, "warning", entry["level"])
	assert.EqualValues(t, 404, entry["status"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	logger := New("svc", "nonsense", "text")
	assert.Equal(t, "info", logger.GetLevel().String())
	assert.Equal(t, "svc", logger.Service())
}
