package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb)
}

func TestRedisStore_Acquire_FirstTimeThenDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	firstTime, err := store.Acquire(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	require.True(t, firstTime, "first acquire must report firstTime=true")

	firstTime, err = store.Acquire(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	require.False(t, firstTime, "duplicate acquire must report duplicate=false")
}

func TestRedisStore_Release_AllowsReacquire(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Acquire(ctx, "evt-2", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "evt-2"))

	firstTime, err := store.Acquire(ctx, "evt-2", time.Hour)
	require.NoError(t, err)
	require.True(t, firstTime, "release must allow a deliberate retry to reacquire (spec.md §4.3 step 5)")
}

func TestRedisStore_MemoizeMode_ReplaysStoredResponse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.Load(ctx, "client-key-1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Store(ctx, "client-key-1", []byte(`{"ok":true}`), time.Hour))

	body, found, err := store.Load(ctx, "client-key-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"ok":true}`, string(body))
}
