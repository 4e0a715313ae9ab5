// Package middleware provides the HTTP middleware stack of the API.
package middleware

import (
	"context"
	"net/http"

	"github.com/R3E-Network/statsgate/internal/auth"
	"github.com/R3E-Network/statsgate/internal/errors"
	internalhttputil "github.com/R3E-Network/statsgate/internal/httputil"
	"github.com/R3E-Network/statsgate/internal/logging"
	"github.com/R3E-Network/statsgate/internal/metrics"
)

type claimsKey struct{}

// AuthMiddleware rejects requests that are neither exempt nor carry a valid
// bearer token.
type AuthMiddleware struct {
	gate    *auth.Gate
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewAuthMiddleware creates a new authentication middleware. m may be nil.
func NewAuthMiddleware(gate *auth.Gate, logger *logging.Logger, m *metrics.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		gate:    gate,
		logger:  logger,
		metrics: m,
	}
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.gate.IsExempt(r.URL.Path, r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.gate.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		ctx := logging.WithUserID(r.Context(), claims.Subject)
		ctx = context.WithValue(ctx, claimsKey{}, claims)

		m.logger.WithContext(ctx).Debug("Authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	se := internalhttputil.WriteServiceError(w, r, err)
	m.metrics.RecordAuthFailure(string(se.Code))

	fields := map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"code":   se.Code,
	}
	if cause := se.Unwrap(); cause != nil {
		fields["reason"] = cause.Error()
	}
	event := "missing_credential"
	if se.Code == errors.ErrCodeInvalidToken {
		event = "invalid_token"
	}
	m.logger.LogSecurityEvent(r.Context(), event, fields)
}

// GetClaims returns the verified claims, or nil on exempt routes.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}
