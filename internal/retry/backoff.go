// Package retry implements the Retry/DLQ Pipeline of spec.md §4.4: a
// dedicated low-concurrency consumer on the retry topic that waits out a
// jittered exponential backoff, re-invokes the original channel handler,
// and either succeeds, republishes to the retry topic with the next
// attempt's longer delay, or dead-letters once maxAttempts is exhausted. Grounded on email-service's
// internal/infrastructure/messaging/rabbitmq/retry_publisher.go for the
// tiering idea, generalized away from email-specific payloads.
package retry

import (
	"math/rand"
	"time"
)

// BackoffConfig mirrors spec.md §4.4's defaults (initial=1s,
// multiplier=2.0, max=30s, maxAttempts=3) but is injected from
// config.Config so operators can tune it per deployment.
type BackoffConfig struct {
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
	MaxAttempts int
}

// Delay computes initial * multiplier^(attempt-1), capped at Max, jittered
// by ±20% (spec.md §4.4, §8 invariant 7's "jitter bound"). attempt is
// 1-indexed: the first retry uses attempt=1.
func Delay(cfg BackoffConfig, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(cfg.Initial)
	for i := 1; i < attempt; i++ {
		d *= cfg.Multiplier
	}
	capped := time.Duration(d)
	if capped > cfg.Max {
		capped = cfg.Max
	}
	jitterFactor := 0.8 + 0.4*rand.Float64() // [0.8, 1.2)
	return time.Duration(float64(capped) * jitterFactor)
}
