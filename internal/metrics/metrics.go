// Package metrics holds the process-wide Prometheus collectors every
// subsystem in the core reports to (spec.md §2 "Observability Taps"). The
// scrape format and sink are out of scope; only the counters/gauges are.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbox Store / Publisher
	OutboxEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events successfully published to the bus.",
	}, []string{"topic"})

	OutboxEventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox publish attempts that failed and were scheduled for retry.",
	}, []string{"topic"})

	OutboxEventDeadLetter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_event_dead_letter_total",
		Help: "Outbox events that exceeded max publish attempts.",
	}, []string{"topic"})

	OutboxBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_size",
		Help:    "Number of events claimed per publisher pass.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
	})

	// Consumer Runtime
	ConsumerMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_processed_total",
		Help: "Messages successfully handled by a consumer binding.",
	}, []string{"channel", "event_type"})

	ConsumerMessagesDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_duplicate_total",
		Help: "Messages skipped because of idempotency dedup.",
	}, []string{"channel", "event_type"})

	ConsumerHandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consumer_handler_duration_seconds",
		Help:    "Handler latency by channel and event type.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"channel", "event_type"})

	// Retry / DLQ Pipeline
	RetriesSuccess = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retries_success_total",
		Help: "Retry-topic re-invocations that succeeded.",
	}, []string{"channel"})

	RetriesFailure = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retries_failure_total",
		Help: "Retry-topic re-invocations that failed.",
	}, []string{"channel"})

	DeadLetter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dead_letter_total",
		Help: "Retry-topic records that exhausted max attempts.",
	}, []string{"channel"})

	// Cache Layer
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Cache reads that hit.",
	}, []string{"pattern"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache reads that missed.",
	}, []string{"pattern"})

	CacheStampedeLockWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_stampede_lock_waits_total",
		Help: "Rebuilds that found the stampede lock already held.",
	}, []string{"key_prefix"})

	CacheStaleServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_stale_served_total",
		Help: "Reads served from the stale shadow copy during degradation.",
	}, []string{"pattern"})

	// Resilience Fabric
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "0=closed 1=open 2=half-open.",
	}, []string{"name"})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_trips_total",
		Help: "CLOSED->OPEN transitions.",
	}, []string{"name"})

	BulkheadRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkhead_rejections_total",
		Help: "Calls rejected with BULKHEAD_FULL.",
	}, []string{"name"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Admissions denied by the sliding-window rate limiter.",
	}, []string{"action_key"})

	RateLimitFailOpen = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_fail_open_total",
		Help: "Admissions allowed because the rate-limit store was unavailable.",
	}, []string{"action_key"})

	IdempotencyDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idempotency_duplicates_total",
		Help: "Duplicate keys observed by the idempotency store.",
	})

	// Scheduled sweeps
	JobsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_expired_total",
		Help: "Jobs moved ACTIVE->EXPIRED by the scheduled expiration sweep.",
	})

	JobExpirySweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "job_expiry_sweep_errors_total",
		Help: "Sweep passes that failed to list or transition candidate jobs.",
	})
)
