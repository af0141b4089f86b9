package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vawtech/presence/pkg/auth"
	apperrors "github.com/vawtech/presence/pkg/errors"
	"github.com/vawtech/presence/pkg/httputil"
	"github.com/vawtech/presence/pkg/logging"
	"github.com/vawtech/presence/pkg/metrics"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// TraceIDMiddleware assigns every request a trace ID
func TraceIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(httputil.WithTraceID(r.Context(), traceID)))
	})
}

// statusRecorder captures the response status code for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one structured line per request
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logging.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("trace_id", httputil.GetTraceID(r)),
		)
	})
}

// MetricsMiddleware records request latency by route pattern
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			if m != nil {
				// The route pattern keeps label cardinality bounded;
				// raw paths would mint a series per user ID
				route := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				m.RequestDuration.
					WithLabelValues(route, strconv.Itoa(rec.status)).
					Observe(time.Since(start).Seconds())
			}
		})
	}
}

// Recoverer converts panics into 500 responses
func Recoverer(errHandler *apperrors.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					errHandler.HandlePanic(w, recovered, httputil.GetTraceID(r))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware validates the bearer token and stores its claims in the
// request context. A nil token manager disables authentication entirely
// (tests, local development).
func AuthMiddleware(tokens *auth.TokenManager, errHandler *apperrors.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearerToken(r)
			if token == "" {
				errHandler.Handle(w,
					apperrors.AuthenticationErrorf("MISSING_TOKEN", "authentication token is required"),
					httputil.GetTraceID(r))
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				errHandler.Handle(w,
					apperrors.AuthenticationErrorf("INVALID_TOKEN", "invalid or expired token").Wrap(err),
					httputil.GetTraceID(r))
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSupervisor rejects callers without supervisory privilege
func RequireSupervisor(errHandler *apperrors.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromRequest(r)
			if claims != nil && !claims.IsSupervisor() {
				errHandler.Handle(w,
					apperrors.AuthorizationErrorf("SUPERVISOR_REQUIRED", "supervisory privilege is required"),
					httputil.GetTraceID(r))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromRequest extracts validated claims from the request context.
// Returns nil when authentication is disabled.
func ClaimsFromRequest(r *http.Request) *auth.Claims {
	claims, ok := r.Context().Value(claimsContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.Fields(header)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
