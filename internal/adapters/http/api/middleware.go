package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"

	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
)

// MetricsMiddleware records request counts and durations, labelled by route name.
func MetricsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create a response writer wrapper to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			endpoint := routeName(r)
			metrics.RecordHTTPRequest(endpoint, r.Method, status)
			metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, time.Since(start).Seconds())
		})
	}
}

// PanicRecovery turns a handler panic into a 500 response.
func PanicRecovery(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					metrics.RecordHTTPPanic()
					log.Error(r.Context(), "panic serving request",
						logger.String("path", r.URL.Path),
						logger.Any("panic", rec),
						logger.String("stack", string(debug.Stack())),
					)
					writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%w: %v", ErrPanic, rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestRateLimiter decides whether one more request under key is allowed.
type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit caps each user at perMinute requests per named route. Routes not
// listed pass through untouched.
func RateLimit(limiter RequestRateLimiter, perMinute int, routes ...string) mux.MiddlewareFunc {
	limited := make(map[string]struct{}, len(routes))
	for _, name := range routes {
		limited[name] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := routeName(r)
			if _, ok := limited[name]; !ok {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), rateKeyPrefix+name+"||"+userID(r), redis_rate.PerMinute(perMinute))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "rate_limit_error", err)
				return
			}
			if res.Allowed > 0 {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RecordHTTPRateLimited(name)
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds()+1)))
			writeError(w, http.StatusTooManyRequests, "rate_limited",
				fmt.Errorf("%w: retry after %.0f seconds", ErrRateLimited, res.RetryAfter.Seconds()))
		})
	}
}

// DrainAndCloseRequest drains and closes the request body once the handler returns.
func DrainAndCloseRequest() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body != nil {
				_, _ = io.Copy(io.Discard, r.Body)
				_ = r.Body.Close()
			}
		})
	}
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return "unknown"
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
