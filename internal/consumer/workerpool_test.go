package consumer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsAllSubmittedJobs(t *testing.T) {
	wp := NewWorkerPool(4)
	var count int64
	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		wp.Submit(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		})
	}
	wg.Wait()
	require.Equal(t, int64(20), atomic.LoadInt64(&count))
	wp.Stop()
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	wp := NewWorkerPool(2)
	var inflight int64
	var maxSeen int64
	var wg sync.WaitGroup
	wg.Add(6)
	for i := 0; i < 6; i++ {
		wp.Submit(func() {
			defer wg.Done()
			n := atomic.AddInt64(&inflight, 1)
			for {
				old := atomic.LoadInt64(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt64(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&inflight, -1)
		})
	}
	wg.Wait()
	require.LessOrEqual(t, atomic.LoadInt64(&maxSeen), int64(2))
	wp.Stop()
}
