// Package httpapi wires the public HTTP surface: routes, handlers and the
// middleware list that guards them.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/statsgate/internal/auth"
	"github.com/R3E-Network/statsgate/internal/errors"
	"github.com/R3E-Network/statsgate/internal/httputil"
	"github.com/R3E-Network/statsgate/internal/logging"
	"github.com/R3E-Network/statsgate/internal/metrics"
	"github.com/R3E-Network/statsgate/internal/middleware"
	"github.com/R3E-Network/statsgate/internal/stats"
)

// DefaultMaxBodyBytes bounds request bodies when Options leaves it unset.
const DefaultMaxBodyBytes int64 = 8 << 20

// Options carries the dependencies of the API handler.
type Options struct {
	Gate           *auth.Gate
	Logger         *logging.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// handler bundles the HTTP endpoints.
type handler struct {
	gate    *auth.Gate
	logger  *logging.Logger
	metrics *metrics.Metrics
	maxBody int64
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// statsRequest keeps the batch raw; its shape is checked by stats.ParseBatch.
type statsRequest struct {
	Matrices json.RawMessage `json:"matrices"`
}

// NewHandler returns the API wrapped in its middleware list. The list wraps
// the whole router so that preflight, 404 and 405 responses are traced and
// gated like any other request.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Gate == nil {
		return nil, fmt.Errorf("httpapi: token gate is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("statsgate", "info", "json")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	h := &handler{
		gate:    opts.Gate,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		maxBody: opts.MaxBodyBytes,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	router.HandleFunc("/stats", h.stats).Methods(http.MethodPost)
	router.HandleFunc("/docs", h.docs).Methods(http.MethodGet)
	router.HandleFunc("/docs/ui", h.docsUI).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(h.notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	return middleware.Chain(router,
		middleware.NewTracingMiddleware(opts.Logger).Handler,
		middleware.RecoveryMiddleware(opts.Logger),
		middleware.MetricsMiddleware(opts.Metrics, router),
		middleware.NewCORSMiddleware(opts.AllowedOrigins).Handler,
		middleware.NewAuthMiddleware(opts.Gate, opts.Logger, opts.Metrics).Handler,
	), nil
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// login issues a token for the requested username without checking any
// credential. An empty or absent body yields the default subject.
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := httputil.DecodeJSON(w, r, h.maxBody, &payload); err != nil {
		h.fail(w, r, err)
		return
	}

	token, err := h.gate.Issue(payload.Username)
	if err != nil {
		h.fail(w, r, errors.Internal("", err))
		return
	}

	h.metrics.RecordTokenIssued()
	h.logger.WithContext(r.Context()).WithField("subject", subjectOrDefault(payload.Username)).Info("Token issued")

	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token})
}

// stats validates the batch shape, aggregates it and rejects the whole
// response when the sum is not a finite number.
func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	var payload statsRequest
	if err := httputil.DecodeJSON(w, r, h.maxBody, &payload); err != nil {
		h.fail(w, r, err)
		return
	}

	batch, err := stats.ParseBatch(payload.Matrices)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result := stats.Aggregate(batch)
	if result.Poisoned() {
		h.fail(w, r, errors.NoNumericValues())
		return
	}

	h.metrics.RecordBatch(len(batch), result.Count)

	entry := h.logger.WithContext(r.Context()).
		WithField("matrices", len(batch)).
		WithField("cells", result.Count)
	if claims := middleware.GetClaims(r.Context()); claims != nil && claims.ExpiresAt != nil {
		entry = entry.WithField("token_expires_at", claims.ExpiresAt.Time)
	}
	entry.Debug("Batch aggregated")

	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, errors.NotFound())
}

func (h *handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, errors.MethodNotAllowed())
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	se := httputil.WriteServiceError(w, r, err)

	switch {
	case errors.IsValidationError(se):
		h.metrics.RecordValidationFailure(string(se.Code))
	case se.HTTPStatus >= http.StatusInternalServerError:
		h.logger.WithContext(r.Context()).WithError(se.Unwrap()).Error("Request failed")
	}
}

func subjectOrDefault(username string) string {
	if username = strings.TrimSpace(username); username == "" {
		return auth.DefaultSubject
	}
	return username
}
