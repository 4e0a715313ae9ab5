package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &out), "log line: %s", line)
	return out
}

func TestNew_Levels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("test", "debug", "json").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("test", "bogus", "json").GetLevel())
	assert.Equal(t, "test", New("test", "info", "json").Service())
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("svc", "info", "text", &buf)
	logger.WithFields(map[string]interface{}{"k": "v"}).Info("hello")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "service=svc")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("svc", "info", "json", &buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUserID(ctx, "demo")
	logger.WithContext(ctx).Info("hello")

	out := decodeLine(t, &buf)
	assert.Equal(t, "svc", out["service"])
	assert.Equal(t, "trace-1", out["trace_id"])
	assert.Equal(t, "demo", out["user_id"])
}

func TestLogRequest_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "info"},
		{401, "warning"},
		{500, "error"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := NewWithOutput("svc", "info", "json", &buf)
		logger.LogRequest(context.Background(), "POST", "/stats", tt.status, 5*time.Millisecond)

		out := decodeLine(t, &buf)
		assert.Equal(t, tt.level, out["level"])
		assert.Equal(t, float64(tt.status), out["status"])
		assert.Equal(t, "/stats", out["path"])
	}
}

func TestLogSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("svc", "info", "json", &buf)
	logger.LogSecurityEvent(context.Background(), "auth_failed", map[string]interface{}{"code": "INVALID_TOKEN"})

	out := decodeLine(t, &buf)
	assert.Equal(t, "auth_failed", out["security_event"])
	assert.Equal(t, "INVALID_TOKEN", out["code"])
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetUserID(ctx))
	assert.Equal(t, ctx, WithTraceID(ctx, ""))

	id := NewTraceID()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, NewTraceID())
}
