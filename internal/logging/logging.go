// Package logging provides structured, context-aware logging for the service.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	// TraceIDKey carries the request trace ID.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey carries the authenticated subject.
	UserIDKey contextKey = "user_id"
)

// Logger wraps logrus with the service name and context extraction.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a logger. level is a logrus level name; format is "json" or "text".
func New(service, level, format string) *Logger {
	return NewWithOutput(service, level, format, os.Stdout)
}

// NewWithOutput creates a logger writing to out.
func NewWithOutput(service, level, format string, out io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	return &Logger{Logger: l, service: service}
}

// Service returns the service name attached to every entry.
func (l *Logger) Service() string {
	return l.service
}

func (l *Logger) base() *logrus.Entry {
	return l.Logger.WithField("service", l.service)
}

// WithContext returns an entry tagged with the trace and user IDs found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.base()
	if ctx == nil {
		return entry
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField(string(TraceIDKey), traceID)
	}
	if userID := GetUserID(ctx); userID != "" {
		entry = entry.WithField(string(UserIDKey), userID)
	}
	return entry
}

// WithFields returns an entry with the service name and fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.base().WithFields(logrus.Fields(fields))
}

// WithError returns an entry with the service name and error attached.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.base().WithError(err)
}

// LogRequest writes one line per handled HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})

	switch {
	case status >= 500:
		entry.Error("HTTP request")
	case status >= 400:
		entry.Warn("HTTP request")
	default:
		entry.Info("HTTP request")
	}
}

// LogSecurityEvent records authentication and authorization outcomes.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).
		WithField("security_event", event).
		WithFields(logrus.Fields(fields)).
		Warn("Security event")
}

// =============================================================================
// Context helpers
// =============================================================================

// NewTraceID returns a fresh random trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID stores a trace ID in ctx. Empty IDs are ignored.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace ID stored in ctx, or "".
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores the authenticated subject in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID returns the authenticated subject stored in ctx, or "".
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
