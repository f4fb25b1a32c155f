package cache

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/jobcore/internal/metrics"
)

// StampedeLock is a short-TTL distributed lock (spec.md §4.5 "stampede
// protection"): when many concurrent readers miss the same cache key, only
// the lock holder rebuilds it; the rest either wait briefly or fall back
// to the stale shadow copy.
type StampedeLock struct {
	client *Client
	ttl    time.Duration
}

func NewStampedeLock(client *Client, ttl time.Duration) *StampedeLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &StampedeLock{client: client, ttl: ttl}
}

// TryLock attempts to acquire "lock:{key}" and returns a token to release
// it with, or ok=false if another rebuild is already in flight.
func (l *StampedeLock) TryLock(ctx context.Context, key string) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = l.client.Raw().SetNX(ctx, "lock:"+key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		prefix, _, _ := strings.Cut(key, ":")
		metrics.CacheStampedeLockWaits.WithLabelValues(prefix).Inc()
	}
	return token, ok, nil
}

// Unlock releases the lock only if token still matches (avoids releasing
// a lock some other holder acquired after this one's TTL already expired).
func (l *StampedeLock) Unlock(ctx context.Context, key, token string) error {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
	return script.Run(ctx, l.client.Raw(), []string{"lock:" + key}, token).Err()
}
