package bulkhead

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	b := New("db", 1)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Call(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := b.Call(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrFull)

	close(release)
	wg.Wait()
}

func TestBulkhead_AdmitsAfterRelease(t *testing.T) {
	b := New("cache", 1)
	require.NoError(t, b.Call(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, b.Call(context.Background(), func(context.Context) error { return nil }))
	require.Equal(t, 0, b.InUse())
}

func TestBulkhead_CapacityDefaultsToOne(t *testing.T) {
	b := New("x", 0)
	require.Equal(t, 1, b.Capacity())
}

func TestBulkhead_CtxCancelledBeforeRun(t *testing.T) {
	b := New("db", 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := b.Call(ctx, func(context.Context) error { called = true; return nil })
	require.Error(t, err)
	require.False(t, called)
}
