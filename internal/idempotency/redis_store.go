package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baechuer/jobcore/internal/metrics"
)

// RedisStore implements both Store and MemoizeStore against a single
// shared go-redis client. Grounded on email-service's RedisStore
// (MarkSentNX/Seen/MarkSent) but rebuilt on SET NX EX semantics via
// go-redis's SetNX, which returns the "claimed vs already-present"
// boolean directly instead of needing a separate EXISTS round trip.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "idem:"}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

// Acquire implements Store.Acquire via SET key 1 NX EX ttl.
func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errors.New("idempotency: empty key")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	ok, err := s.rdb.SetNX(ctx, s.key(key), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		metrics.IdempotencyDuplicates.Inc()
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.rdb.Del(ctx, s.key(key)).Err()
}

// Load implements MemoizeStore.Load.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, s.memoizeKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Store implements MemoizeStore.Store.
func (s *RedisStore) Store(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return s.rdb.Set(ctx, s.memoizeKey(key), response, ttl).Err()
}

func (s *RedisStore) memoizeKey(k string) string { return s.prefix + "response:" + k }
