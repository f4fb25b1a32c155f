// Package cache implements the Cache Layer of spec.md §4.5: cache-aside
// reads (search and detail variants), write-through profile storage with a
// stale shadow fallback, and distributed-lock stampede protection.
// Grounded on event-service's internal/infrastructure/caching/redis/client.go
// (typed Get/Set/Delete wrapper over go-redis) and join-service's
// internal/infrastructure/redis/redis.go (fail-open helpers).
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the shared Redis wrapper every cache strategy in this package
// builds on.
type Client struct {
	rdb *redis.Client
}

func NewClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	body, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, body, ttl).Err()
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// DeleteByPrefix scans and deletes every key matching prefix+"*", used by
// search-cache invalidation (spec.md §4.5: "writes invalidate the
// search:* namespace").
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return c.Delete(ctx, keys...)
}

func (c *Client) Raw() *redis.Client { return c.rdb }
