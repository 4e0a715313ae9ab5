package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/statsgate/internal/errors"
	internalhttputil "github.com/R3E-Network/statsgate/internal/httputil"
	"github.com/R3E-Network/statsgate/internal/logging"
)

// RecoveryMiddleware turns a handler panic into a 500 response.
func RecoveryMiddleware(logger *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.WithContext(r.Context()).WithFields(map[string]interface{}{
					"panic": fmt.Sprint(rec),
					"stack": string(debug.Stack()),
					"path":  r.URL.Path,
				}).Error("Recovered from panic")

				if !rw.written {
					internalhttputil.WriteServiceError(rw, r, errors.Internal("", fmt.Errorf("panic: %v", rec)))
				}
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// Chain wraps h so that the first middleware listed runs first.
func Chain(h http.Handler, middlewares ...mux.MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
