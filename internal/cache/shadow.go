package cache

import (
	"context"
	"time"

	"github.com/baechuer/jobcore/internal/logger"
)

// Shadow maintains a long-TTL "stale:{key}" best-effort copy of any value
// written through WriteThrough, so reads can still be served (marked
// stale) when the primary store's circuit breaker is open (spec.md §4.5
// "stale-fallback" + §4.6 "degraded mode"). Writes here are best-effort:
// a shadow-write failure must never fail the caller's primary write.
type Shadow struct {
	client *Client
	ttl    time.Duration
}

func NewShadow(client *Client, ttl time.Duration) *Shadow {
	return &Shadow{client: client, ttl: ttl}
}

func (s *Shadow) key(k string) string { return "stale:" + k }

func (s *Shadow) Write(ctx context.Context, key string, val any) {
	if err := s.client.Set(ctx, s.key(key), val, s.ttl); err != nil {
		logger.Component("cache_shadow").Warn().Err(err).Str("key", key).Msg("shadow write failed")
	}
}

func (s *Shadow) Read(ctx context.Context, key string, dest any) (bool, error) {
	return s.client.Get(ctx, s.key(key), dest)
}
