package cache

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/baechuer/jobcore/internal/metrics"
)

// Loader fetches the canonical value from the primary store on a miss.
type Loader func(ctx context.Context) (any, error)

// Aside implements cache-aside reads for two access patterns (spec.md
// §4.5): Search (short TTL, jittered, bulk-invalidated by prefix on any
// write) and Detail (medium TTL, single-key invalidation).
type Aside struct {
	client *Client

	searchTTL    time.Duration
	searchJitter time.Duration
	detailTTL    time.Duration
	detailJitter time.Duration
}

func NewAside(client *Client, searchTTL, searchJitter, detailTTL, detailJitter time.Duration) *Aside {
	return &Aside{
		client:       client,
		searchTTL:    searchTTL,
		searchJitter: searchJitter,
		detailTTL:    detailTTL,
		detailJitter: detailJitter,
	}
}

func jittered(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}
	delta := time.Duration(rand.Int63n(int64(2*jitter))) - jitter
	d := base + delta
	if d < 0 {
		return base
	}
	return d
}

// Search reads "search:{queryHash}" with cache-aside semantics: hit
// returns cached, miss loads, stores with jitter, and records which
// happened.
func (a *Aside) Search(ctx context.Context, queryHash string, dest any, load Loader) error {
	key := "search:" + queryHash
	hit, err := a.client.Get(ctx, key, dest)
	if err != nil {
		return err
	}
	if hit {
		metrics.CacheHits.WithLabelValues("search").Inc()
		return nil
	}
	metrics.CacheMisses.WithLabelValues("search").Inc()

	val, err := load(ctx)
	if err != nil {
		return err
	}
	if err := assign(dest, val); err != nil {
		return err
	}
	return a.client.Set(ctx, key, val, jittered(a.searchTTL, a.searchJitter))
}

// Detail reads "detail:{aggregateId}" with cache-aside semantics.
func (a *Aside) Detail(ctx context.Context, aggregateID string, dest any, load Loader) error {
	key := "detail:" + aggregateID
	hit, err := a.client.Get(ctx, key, dest)
	if err != nil {
		return err
	}
	if hit {
		metrics.CacheHits.WithLabelValues("detail").Inc()
		return nil
	}
	metrics.CacheMisses.WithLabelValues("detail").Inc()

	val, err := load(ctx)
	if err != nil {
		return err
	}
	if err := assign(dest, val); err != nil {
		return err
	}
	return a.client.Set(ctx, key, val, jittered(a.detailTTL, a.detailJitter))
}

// InvalidateSearch drops every cached search result. Called by any command
// handler that writes an aggregate the search index covers (spec.md §4.5).
func (a *Aside) InvalidateSearch(ctx context.Context) error {
	return a.client.DeleteByPrefix(ctx, "search:")
}

// InvalidateDetail drops the single-key detail cache entry for an
// aggregate after it's written.
func (a *Aside) InvalidateDetail(ctx context.Context, aggregateID string) error {
	return a.client.Delete(ctx, "detail:"+aggregateID)
}

// assign copies val's JSON representation into dest so callers get the
// same struct shape whether the value came from cache or from load().
func assign(dest any, val any) error {
	body, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dest)
}
