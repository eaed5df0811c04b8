package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/docflow/pkg/composables"
	"github.com/iota-uz/docflow/pkg/configuration"
)

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// ProvidePool injects the shared pgx pool into every request context.
func ProvidePool(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}

// RequestID ensures every request carries an id, generating one when the
// gateway did not supply it, and echoes it back on the response.
func RequestID() mux.MiddlewareFunc {
	conf := configuration.Use()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get(conf.RequestIDHeader))
			if requestID == "" {
				requestID = uuid.NewString()
				r.Header.Set(conf.RequestIDHeader, requestID)
			}
			w.Header().Set(conf.RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(composables.WithRequestID(r.Context(), requestID)))
		})
	}
}

// ProvideActor surfaces the gateway-asserted tenant and caller identity into
// the request context. Enforcement happens in the controllers; requests
// without identity headers pass through unannotated.
func ProvideActor() mux.MiddlewareFunc {
	conf := configuration.Use()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if raw := strings.TrimSpace(r.Header.Get(conf.TenantIDHeader)); raw != "" {
				if tenantID, err := uuid.Parse(raw); err == nil {
					ctx = composables.WithTenantID(ctx, tenantID)
				}
			}
			if raw := strings.TrimSpace(r.Header.Get(conf.UserIDHeader)); raw != "" {
				if userID, err := uuid.Parse(raw); err == nil {
					ctx = composables.WithActor(ctx, composables.Actor{
						ID:   userID,
						Role: strings.TrimSpace(r.Header.Get(conf.UserRoleHeader)),
					})
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithLogger logs one line per request and injects a request-scoped entry.
func WithLogger(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": composables.UseRequestID(r.Context()),
			})
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r.WithContext(composables.WithLogger(r.Context(), entry)))
			entry.WithFields(logrus.Fields{
				"status":   sw.Status(),
				"duration": time.Since(start).String(),
			}).Info("request completed")
		})
	}
}
