package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewClient(rdb)
}

func TestAside_Search_MissThenHit(t *testing.T) {
	client := newTestClient(t)
	aside := NewAside(client, time.Minute, 0, time.Minute, 0)

	loads := 0
	load := func(ctx context.Context) (any, error) {
		loads++
		return widget{ID: "q1", Name: "from-loader"}, nil
	}

	var dest widget
	require.NoError(t, aside.Search(context.Background(), "q1", &dest, load))
	require.Equal(t, "from-loader", dest.Name)
	require.Equal(t, 1, loads)

	var dest2 widget
	require.NoError(t, aside.Search(context.Background(), "q1", &dest2, load))
	require.Equal(t, "from-loader", dest2.Name)
	require.Equal(t, 1, loads, "second read must be served from cache, not the loader")
}

func TestAside_InvalidateSearch_DropsAllSearchKeys(t *testing.T) {
	client := newTestClient(t)
	aside := NewAside(client, time.Minute, 0, time.Minute, 0)

	load := func(ctx context.Context) (any, error) { return widget{ID: "q1"}, nil }
	var dest widget
	require.NoError(t, aside.Search(context.Background(), "q1", &dest, load))

	require.NoError(t, aside.InvalidateSearch(context.Background()))

	loads := 0
	load2 := func(ctx context.Context) (any, error) { loads++; return widget{ID: "q1"}, nil }
	require.NoError(t, aside.Search(context.Background(), "q1", &dest, load2))
	require.Equal(t, 1, loads)
}

func TestAside_Detail_InvalidateSingleKey(t *testing.T) {
	client := newTestClient(t)
	aside := NewAside(client, time.Minute, 0, time.Minute, 0)

	loads := 0
	load := func(ctx context.Context) (any, error) { loads++; return widget{ID: "42"}, nil }
	var dest widget
	require.NoError(t, aside.Detail(context.Background(), "42", &dest, load))
	require.NoError(t, aside.Detail(context.Background(), "42", &dest, load))
	require.Equal(t, 1, loads)

	require.NoError(t, aside.InvalidateDetail(context.Background(), "42"))
	require.NoError(t, aside.Detail(context.Background(), "42", &dest, load))
	require.Equal(t, 2, loads)
}

func TestJittered_StaysWithinBounds(t *testing.T) {
	base := time.Minute
	jitter := 10 * time.Second
	for i := 0; i < 100; i++ {
		d := jittered(base, jitter)
		require.GreaterOrEqual(t, d, base-jitter)
		require.LessOrEqual(t, d, base+jitter)
	}
}

func TestJittered_ZeroJitterReturnsBase(t *testing.T) {
	require.Equal(t, time.Minute, jittered(time.Minute, 0))
}

func TestStampedeLock_SecondAcquireFails(t *testing.T) {
	client := newTestClient(t)
	lock := NewStampedeLock(client, 5*time.Second)

	token, ok, err := lock.TryLock(context.Background(), "detail:42")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok2, err := lock.TryLock(context.Background(), "detail:42")
	require.NoError(t, err)
	require.False(t, ok2)

	require.NoError(t, lock.Unlock(context.Background(), "detail:42", token))

	_, ok3, err := lock.TryLock(context.Background(), "detail:42")
	require.NoError(t, err)
	require.True(t, ok3, "lock must be acquirable again after Unlock")
}

func TestStampedeLock_UnlockWithWrongTokenNoops(t *testing.T) {
	client := newTestClient(t)
	lock := NewStampedeLock(client, 5*time.Second)

	token, ok, err := lock.TryLock(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Unlock(context.Background(), "k", "not-"+token))

	_, ok2, err := lock.TryLock(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok2, "unlock with a stale token must not release the real holder's lock")
}

func TestWriteThrough_ReadsPrimaryWhenAvailable(t *testing.T) {
	client := newTestClient(t)
	shadow := NewShadow(client, time.Hour)
	wt := NewWriteThrough(client, shadow, time.Hour, func() bool { return true })

	require.NoError(t, wt.Write(context.Background(), "7", widget{ID: "7", Name: "primary"}))

	var dest widget
	found, stale, err := wt.Read(context.Background(), "7", &dest)
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, stale)
	require.Equal(t, "primary", dest.Name)
}

func TestWriteThrough_FallsBackToShadowWhenPrimaryUnavailable(t *testing.T) {
	client := newTestClient(t)
	shadow := NewShadow(client, time.Hour)
	wt := NewWriteThrough(client, shadow, time.Hour, func() bool { return false })

	require.NoError(t, wt.Write(context.Background(), "7", widget{ID: "7", Name: "shadowed"}))

	var dest widget
	found, stale, err := wt.Read(context.Background(), "7", &dest)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, stale)
	require.Equal(t, "shadowed", dest.Name)
}

func TestWriteThrough_UnavailableAndNoShadowEntryMisses(t *testing.T) {
	client := newTestClient(t)
	shadow := NewShadow(client, time.Hour)
	wt := NewWriteThrough(client, shadow, time.Hour, func() bool { return false })

	var dest widget
	found, stale, err := wt.Read(context.Background(), "missing", &dest)
	require.NoError(t, err)
	require.False(t, found)
	require.False(t, stale)
}
