// Command statsgate serves the token-gated matrix statistics API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/R3E-Network/statsgate/internal/auth"
	"github.com/R3E-Network/statsgate/internal/config"
	"github.com/R3E-Network/statsgate/internal/httpapi"
	"github.com/R3E-Network/statsgate/internal/logging"
	"github.com/R3E-Network/statsgate/internal/metrics"
)

const serviceName = "statsgate"

func main() {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(serviceName, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
}

type servers struct {
	api     *http.Server
	metrics *http.Server
}

// newServers builds the public listener and, unless disabled, the metrics
// listener. Nothing is started.
func newServers(cfg *config.Config, logger *logging.Logger) (*servers, error) {
	if cfg.UsingDefaultSecret() {
		logger.WithField("env", "JWT_SECRET").Warn("Using the built-in development secret; tokens can be forged by anyone")
	}

	gate, err := auth.NewGate(cfg.JWTSecret, auth.WithIssuer(cfg.TokenIssuer))
	if err != nil {
		return nil, err
	}

	m := metrics.New(serviceName)

	handler, err := httpapi.NewHandler(httpapi.Options{
		Gate:           gate,
		Logger:         logger,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins(),
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})
	if err != nil {
		return nil, err
	}

	s := &servers{
		api: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}

	if addr := cfg.MetricsAddr(); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.InstrumentMetricHandler(m.Registry(), m.Handler()))
		s.metrics = &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		}
	}

	return s, nil
}

// run serves until ctx is cancelled or a listener fails, then drains both
// servers within the shutdown timeout.
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	s, err := newServers(cfg, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		logger.WithFields(map[string]interface{}{"addr": srv.Addr, "listener": name}).Info("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s listener: %w", name, err)
		}
	}

	go serve("api", s.api)
	if s.metrics != nil {
		go serve("metrics", s.metrics)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := s.api.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("API shutdown error")
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Metrics shutdown error")
		}
	}

	return runErr
}
