package cache

import (
	"context"
	"time"

	"github.com/baechuer/jobcore/internal/metrics"
)

// WriteThrough implements the profile write-through pattern of spec.md
// §4.5: every write updates Redis synchronously alongside the primary
// store, using a long TTL since profile data changes infrequently; reads
// fall back to the stale shadow copy when primaryAvailable reports the
// primary-store circuit is open, trading freshness for availability
// (spec.md §4.6 degraded mode).
type WriteThrough struct {
	client *Client
	shadow *Shadow
	ttl    time.Duration

	// primaryAvailable reports whether the primary-store circuit breaker
	// is currently closed/half-open (safe to read through) rather than
	// open. Injected as a func to avoid this package depending on the
	// resilience fabric directly.
	primaryAvailable func() bool
}

func NewWriteThrough(client *Client, shadow *Shadow, ttl time.Duration, primaryAvailable func() bool) *WriteThrough {
	return &WriteThrough{client: client, shadow: shadow, ttl: ttl, primaryAvailable: primaryAvailable}
}

func (w *WriteThrough) key(aggregateID string) string { return "profile:" + aggregateID }

// Write updates the cache entry and the stale shadow copy. Callers invoke
// this in the same request as the primary-store write, after it commits.
func (w *WriteThrough) Write(ctx context.Context, aggregateID string, val any) error {
	if err := w.client.Set(ctx, w.key(aggregateID), val, w.ttl); err != nil {
		return err
	}
	w.shadow.Write(ctx, w.key(aggregateID), val)
	return nil
}

// Read returns (found, stale, err). When the primary store's circuit is
// open, Read serves the shadow copy and reports stale=true. Otherwise it
// reads only the write-through cache entry: a miss returns found=false,
// and nothing is loaded from the primary store or written to the cache.
func (w *WriteThrough) Read(ctx context.Context, aggregateID string, dest any) (found bool, stale bool, err error) {
	if w.primaryAvailable != nil && !w.primaryAvailable() {
		found, err = w.shadow.Read(ctx, w.key(aggregateID), dest)
		if found {
			metrics.CacheStaleServed.WithLabelValues("profile").Inc()
		}
		return found, found, err
	}

	found, err = w.client.Get(ctx, w.key(aggregateID), dest)
	if err != nil {
		return false, false, err
	}
	return found, false, nil
}
