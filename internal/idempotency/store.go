// Package idempotency implements the Idempotency Store of spec.md §4.3:
// a dedup mode (first-seen wins, replay is skipped) and a memoize mode
// (first response is cached and replayed verbatim on retry). Grounded on
// email-service's internal/infrastructure/idempotency/redis_store.go,
// generalized from redigo to redis/go-redis/v9 so the Consumer Runtime,
// Cache Layer, and Rate Limiter share one Redis client (spec.md §9).
package idempotency

import (
	"context"
	"time"
)

// Store is the dedup-mode contract the Consumer Runtime uses at dispatch
// time (spec.md §4.3 step 2): "has this eventId been seen before".
type Store interface {
	// Acquire atomically claims key for ttl. true means this call is the
	// first to see key (proceed with the handler); false means a prior
	// call already claimed it (skip, treat as a duplicate).
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release gives key back up, used when a handler fails after
	// acquiring so the message can be legitimately retried under the
	// same eventId without waiting out the full TTL.
	Release(ctx context.Context, key string) error
}

// MemoizeStore is the richer contract for idempotency keys supplied by a
// caller (e.g. an HTTP Idempotency-Key header) where the same request must
// replay the exact previous response rather than merely being skipped.
type MemoizeStore interface {
	// Load returns the previously stored response bytes, if any.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	// Store saves the response bytes for later replay.
	Store(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
