// Package consumer implements the Consumer Runtime of spec.md §4.3: a
// bounded-concurrency worker pool per (topic, group) binding that
// constructs a stable eventId, gates dispatch on the Idempotency Store,
// and republishes failed handlers onto the retry topic instead of nacking
// back onto the original queue. Grounded on email-service's
// app/consumer/worker_pool.go for the bounded-pool shape.
package consumer

import "sync"

// WorkerPool bounds concurrent job execution. Grounded on
// email-service/app/consumer/worker_pool.go; unlike that teacher file,
// Submit blocks when the pool is saturated rather than silently dropping,
// since the Consumer Runtime relies on the bus's own prefetch/Qos for
// backpressure and must not lose a delivery.
type WorkerPool struct {
	jobs       chan func()
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopSignal chan struct{}
}

func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	wp := &WorkerPool{
		jobs:       make(chan func(), workers*2),
		stopSignal: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case <-wp.stopSignal:
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			job()
		}
	}
}

func (wp *WorkerPool) Submit(job func()) {
	select {
	case <-wp.stopSignal:
		return
	case wp.jobs <- job:
	}
}

func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.stopSignal)
		close(wp.jobs)
	})
	wp.wg.Wait()
}
