package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/statsgate/internal/config"
	"github.com/R3E-Network/statsgate/internal/logging"
)

func TestNewServers(t *testing.T) {
	cfg := config.Default()
	logs := &bytes.Buffer{}
	logger := logging.NewWithOutput("test", "info", "json", logs)

	s, err := newServers(cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, s.metrics)

	assert.Equal(t, ":3000", s.api.Addr)
	assert.Equal(t, ":9090", s.metrics.Addr)
	assert.Equal(t, cfg.ReadTimeout, s.api.ReadTimeout)
	assert.Contains(t, logs.String(), "development secret")

	rec := httptest.NewRecorder()
	s.api.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.metrics.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "statsgate_http_requests_total")

	rec = httptest.NewRecorder()
	s.api.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "metrics are not served on the public listener")
}

func TestNewServers_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.JWTSecret = "prod-secret"
	cfg.MetricsPort = ""
	logs := &bytes.Buffer{}

	s, err := newServers(cfg, logging.NewWithOutput("test", "info", "json", logs))
	require.NoError(t, err)
	assert.Nil(t, s.metrics)
	assert.NotContains(t, logs.String(), "development secret")
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Port = "0"
	cfg.MetricsPort = ""
	cfg.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg, logging.NewWithOutput("test", "info", "json", &bytes.Buffer{}))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
