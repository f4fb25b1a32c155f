// Package middleware implements the request-scoped cross-cutting concerns
// of spec.md §6/§9: principal extraction (auth itself is out of scope per
// spec.md §1; this core trusts an upstream gateway's header), a test-mode
// flag that lets the Rate Limiter be bypassed in integration tests, and
// Idempotency-Key / CSRF-presence plumbing.
// Grounded on event-service's internal/transport/http/middleware/auth.go
// for the context-key + accessor shape, stripped of its JWT parsing since
// authentication is explicitly out of this core's scope.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/baechuer/jobcore/internal/logger"
	"github.com/baechuer/jobcore/internal/resilience/ratelimit"
)

type ctxKey string

const (
	ctxUserID      ctxKey = "user_id"
	ctxTestMode    ctxKey = "test_mode"
	ctxIdempotency ctxKey = "idempotency_key"
)

// Principal reads the upstream-gateway-supplied identity header. It does
// not validate a signature; validation is a different component's job
// per spec.md §1's auth boundary.
func Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get("X-User-Id"))
		ctx := context.WithValue(r.Context(), ctxUserID, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TestMode tags the request context from the X-Test-Mode header so
// downstream resilience primitives can be told "skip rate limiting" in
// integration tests without a separate code path (spec.md §4.6, §6).
func TestMode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flag := strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Test-Mode")), "true")
		ctx := context.WithValue(r.Context(), ctxTestMode, flag)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdempotencyKey threads the Idempotency-Key header into the request
// context so command handlers can memoize their response (spec.md §4.3
// memoize mode).
func IdempotencyKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		ctx := context.WithValue(r.Context(), ctxIdempotency, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCSRFHeader rejects state-changing requests that don't carry the
// double-submit header a browser client is expected to echo back. This is
// presence-only: the actual token issuance/validation scheme lives with
// whatever session layer front-ends this core.
func RequireCSRFHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserID(r *http.Request) string {
	if v, ok := r.Context().Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func IsTestMode(r *http.Request) bool {
	v, _ := r.Context().Value(ctxTestMode).(bool)
	return v
}

func IdempotencyKeyFrom(r *http.Request) string {
	if v, ok := r.Context().Value(ctxIdempotency).(string); ok {
		return v
	}
	return ""
}

// RateLimited wraps a limiter into middleware, bypassing entirely when the
// request is tagged test-mode (spec.md §4.6).
func RateLimited(limiter *ratelimit.Limiter, keyFn func(r *http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsTestMode(r) || limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := limiter.Allow(r.Context(), keyFn(r), limit, window)
			if err != nil {
				logger.Component("http_middleware").Warn().Err(err).Msg("rate limiter errored; failing open")
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
