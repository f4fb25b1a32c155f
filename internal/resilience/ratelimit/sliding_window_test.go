package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewLimiter(rdb)
}

// TestLimiter_Monotonicity covers spec.md §8 property 6: within a window,
// admissions are <= limit.
func TestLimiter_Monotonicity(t *testing.T) {
	limiter := newTestLimiter(t)
	ctx := context.Background()

	admitted := 0
	for i := 0; i < 5; i++ {
		ok, err := limiter.Allow(ctx, "user:7", 3, time.Minute)
		require.NoError(t, err)
		if ok {
			admitted++
		}
	}

	require.Equal(t, 3, admitted, "admissions within the window must not exceed the declared limit")
}

func TestLimiter_AdmitsAgainAfterWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	limiter := NewLimiter(rdb)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "user:9", 2, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := limiter.Allow(ctx, "user:9", 2, time.Second)
	require.NoError(t, err)
	require.False(t, ok, "third admission inside the window must be denied")

	mr.FastForward(2 * time.Second)

	ok, err = limiter.Allow(ctx, "user:9", 2, time.Second)
	require.NoError(t, err)
	require.True(t, ok, "the limiter must admit again once the window has elapsed")
}
