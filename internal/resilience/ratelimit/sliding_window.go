// Package ratelimit implements the sliding-window rate limiter of spec.md
// §4.6, backed by a Redis sorted set scored by millisecond timestamp.
// Grounded verbatim on the Lua script in bff-service's
// middleware/ratelimit.go (RedisRateLimiter.isAllowed), generalized from
// an HTTP middleware into a standalone Allow(actionKey) call so the same
// limiter can gate non-HTTP actions (e.g. a consumer handler) per spec.md
// §9's "rate limiting as a first-class primitive, not just an HTTP
// concern".
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baechuer/jobcore/internal/metrics"
)

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, ttl_ms)
		return 1
	end

	return 0
`)

// Limiter enforces a per-key sliding-window admission limit.
type Limiter struct {
	rdb    *redis.Client
	prefix string
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb, prefix: "rl:"}
}

// Allow reports whether actionKey may proceed under (limit, window). On a
// Redis error it fails open (spec.md §4.6: "a rate limiter outage must not
// become a total outage") and records RateLimitFailOpen so the degraded
// condition stays observable instead of silently vanishing.
func (l *Limiter) Allow(ctx context.Context, actionKey string, limit int, window time.Duration) (bool, error) {
	key := l.prefix + actionKey
	now := time.Now().UnixMilli()
	windowStart := now - window.Milliseconds()

	result, err := slidingWindowScript.Run(ctx, l.rdb, []string{key}, now, windowStart, limit, window.Milliseconds()).Int()
	if err != nil {
		metrics.RateLimitFailOpen.WithLabelValues(actionKey).Inc()
		return true, err
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitRejections.WithLabelValues(actionKey).Inc()
	}
	return allowed, nil
}
