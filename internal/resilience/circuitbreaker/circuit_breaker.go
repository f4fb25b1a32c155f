// Package circuitbreaker implements the per-dependency circuit breaker of
// spec.md §4.6: CLOSED/OPEN/HALF_OPEN state machine guarding a named
// downstream (db, cache, email, sms, ...). Grounded on email-service's
// app/circuitbreaker/circuit_breaker.go, generalized from a raw failure
// count to a sliding window of the last N outcomes so a long-lived
// low-traffic dependency doesn't trip on a handful of failures spread over
// hours (spec.md §8 invariant 9: "breaker state reflects a bounded recent
// window, not all-time history").
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/baechuer/jobcore/internal/metrics"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

// Config mirrors the per-dependency settings in config.Config
// (DBBreaker*, CacheBreaker*, ChannelBreaker*).
type Config struct {
	Window    int           // number of recent outcomes tracked
	Threshold float64       // failure ratio over Window that trips the breaker
	OpenWait  time.Duration // time spent OPEN before probing HALF_OPEN
}

// Breaker is a single named circuit breaker.
type Breaker struct {
	name string
	cfg  Config

	mu           sync.Mutex
	state        State
	outcomes     []bool // true = success, ring buffer
	pos          int
	filled       int
	openedAt     time.Time
	halfOpenBusy bool
}

func New(name string, cfg Config) *Breaker {
	if cfg.Window <= 0 {
		cfg.Window = 10
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	if cfg.OpenWait <= 0 {
		cfg.OpenWait = 30 * time.Second
	}
	b := &Breaker{
		name:     name,
		cfg:      cfg,
		outcomes: make([]bool, cfg.Window),
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return b
}

// Call executes fn under breaker protection. An OPEN breaker rejects
// immediately with ErrOpen; a HALF_OPEN breaker allows exactly one probe
// call at a time.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}

	err := fn(ctx)
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) >= b.cfg.OpenWait {
			b.state = HalfOpen
			b.halfOpenBusy = false
			metrics.CircuitBreakerState.WithLabelValues(b.name).Set(2)
		} else {
			return false
		}
	}

	if b.state == HalfOpen {
		if b.halfOpenBusy {
			return false
		}
		b.halfOpenBusy = true
		return true
	}

	return true
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.halfOpenBusy = false
		if success {
			b.reset()
			return
		}
		b.trip()
		return
	}

	b.outcomes[b.pos] = success
	b.pos = (b.pos + 1) % len(b.outcomes)
	if b.filled < len(b.outcomes) {
		b.filled++
	}

	if b.filled == len(b.outcomes) && b.failureRatio() >= b.cfg.Threshold {
		b.trip()
	}
}

func (b *Breaker) failureRatio() float64 {
	failures := 0
	for _, s := range b.outcomes[:b.filled] {
		if !s {
			failures++
		}
	}
	return float64(failures) / float64(b.filled)
}

func (b *Breaker) trip() {
	if b.state != Open {
		metrics.CircuitBreakerTrips.WithLabelValues(b.name).Inc()
	}
	b.state = Open
	b.openedAt = time.Now()
	b.filled = 0
	b.pos = 0
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(1)
}

func (b *Breaker) reset() {
	b.state = Closed
	b.filled = 0
	b.pos = 0
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(0)
}

// State returns the current state, primarily for the Cache Layer's
// stale-fallback decision (spec.md §4.5) and for health checks.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Available reports whether the breaker currently permits traffic: false
// only while OPEN and OpenWait has not yet elapsed (after that, the next
// Call is admitted as the HALF_OPEN probe). Matches the
// cache.WriteThrough.primaryAvailable callback shape.
func (b *Breaker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open {
		return time.Since(b.openedAt) >= b.cfg.OpenWait
	}
	return true
}
