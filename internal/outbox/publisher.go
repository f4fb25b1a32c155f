package outbox

import (
	"context"
	"math/rand"
	"time"

	"github.com/baechuer/jobcore/internal/bus"
	"github.com/baechuer/jobcore/internal/logger"
	"github.com/baechuer/jobcore/internal/metrics"
)

// Publisher polls the Store for unpublished events and publishes them to
// the bus, implementing the algorithm of spec.md §4.1 step by step.
// Grounded on join-service's outbox_worker.go (poll loop with backoff) and
// event-service's outbox.go (claim/publish/mark split).
type Publisher struct {
	store        *Store
	bus          bus.Publisher
	pollInterval time.Duration
	batchSize    int
	inFlight     time.Duration
}

func NewPublisher(store *Store, b bus.Publisher, pollInterval time.Duration, batchSize int) *Publisher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Publisher{
		store:        store,
		bus:          b,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		inFlight:     pollInterval * 5,
	}
}

// Run blocks, polling until ctx is cancelled. It is meant to be the sole
// body of a dedicated outbox-publisher process (spec.md §2 component
// diagram).
func (p *Publisher) Run(ctx context.Context) error {
	log := logger.Component("outbox_publisher")
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := p.drainOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("claim batch failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("published", n).Msg("outbox batch drained")
			}
		}
	}
}

// drainOnce claims and publishes a single batch (spec.md §4.1 steps 1-5),
// returning the number of events successfully published.
func (p *Publisher) drainOnce(ctx context.Context) (int, error) {
	batch, err := p.store.ClaimBatch(ctx, p.batchSize, p.inFlight)
	if err != nil {
		return 0, err
	}
	metrics.OutboxBatchSize.Observe(float64(len(batch)))

	published := 0
	for _, ev := range batch {
		if err := p.publishOne(ctx, ev); err != nil {
			continue
		}
		published++
	}
	return published, nil
}

func (p *Publisher) publishOne(ctx context.Context, ev Event) error {
	log := logger.Component("outbox_publisher")

	err := p.bus.Publish(ctx, ev.Topic, ev.PartitionKey, ev.Payload, map[string]string{
		"x-event-type": ev.EventType,
	})
	if err != nil {
		metrics.OutboxEventsFailed.WithLabelValues(ev.Topic).Inc()
		if markErr := p.store.MarkFailed(ctx, ev.ID); markErr != nil {
			log.Error().Err(markErr).Int64("event_id", ev.ID).Msg("mark failed errored")
		}
		if ev.RetryCount+1 >= p.store.maxAttempts {
			metrics.OutboxEventDeadLetter.WithLabelValues(ev.Topic).Inc()
		}
		// The row isn't re-slept here: MarkFailed clears its in-flight
		// reservation, so it is claimable again on the next poll cycle.
		// backoffDelay's value is only logged; no claim waits for it.
		log.Warn().
			Err(err).
			Int64("event_id", ev.ID).
			Str("topic", ev.Topic).
			Int("retry_count", ev.RetryCount+1).
			Dur("backoff", backoffDelay(ev.RetryCount+1)).
			Msg("publish failed; will retry")
		return err
	}

	metrics.OutboxEventsPublished.WithLabelValues(ev.Topic).Inc()
	return p.store.MarkPublished(ctx, ev.ID, time.Now())
}

// backoffDelay computes the exponential-with-jitter wait of spec.md §4.4
// defaults (initial=1s, multiplier=2.0, cap=30s, jitter=±20%). The outbox
// only logs it on a failed publish; it does not delay the row's next claim.
func backoffDelay(attempt int) time.Duration {
	const (
		initial    = time.Second
		multiplier = 2.0
		cap        = 30 * time.Second
	)
	d := float64(initial)
	for i := 1; i < attempt; i++ {
		d *= multiplier
	}
	capped := time.Duration(d)
	if capped > cap {
		capped = cap
	}
	jitter := time.Duration(float64(capped) * (0.8 + 0.4*rand.Float64()))
	return jitter
}
