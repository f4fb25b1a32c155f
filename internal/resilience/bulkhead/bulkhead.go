// Package bulkhead implements the bounded-concurrency isolation of
// spec.md §4.6: a named pool that fails fast with a BULKHEAD_FULL error
// once its concurrent-call ceiling is reached, so one overloaded
// dependency cannot starve goroutines that unrelated requests need.
// Grounded on the worker-pool shape of email-service's
// app/consumer/worker_pool.go, adapted from "queue work" to "gate
// concurrent calls" via a buffered semaphore channel.
package bulkhead

import (
	"context"
	"errors"

	"github.com/baechuer/jobcore/internal/metrics"
)

var ErrFull = errors.New("BULKHEAD_FULL")

// Bulkhead bounds how many calls may run concurrently under its name.
type Bulkhead struct {
	name string
	sem  chan struct{}
}

func New(name string, maxConcurrent int) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Bulkhead{name: name, sem: make(chan struct{}, maxConcurrent)}
}

// Call runs fn if a slot is free; otherwise returns ErrFull immediately
// (spec.md §4.6: "fails fast rather than queuing unboundedly"). Acquiring
// a slot never waits. If ctx is already cancelled once a slot is taken,
// Call releases the slot and returns ctx.Err() without running fn.
func (b *Bulkhead) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case b.sem <- struct{}{}:
	default:
		metrics.BulkheadRejections.WithLabelValues(b.name).Inc()
		return ErrFull
	}
	defer func() { <-b.sem }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return fn(ctx)
}

// InUse reports the current occupancy, useful for health/metrics probes.
func (b *Bulkhead) InUse() int { return len(b.sem) }

// Capacity reports the configured ceiling.
func (b *Bulkhead) Capacity() int { return cap(b.sem) }
