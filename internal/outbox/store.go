// Package outbox implements the Outbox Store of spec.md §4.1: atomic
// persistence of a domain event alongside its producing domain write, and
// the claim-check queries the Outbox Publisher polls. Grounded on
// event-service/internal/infrastructure/db/postgres/outbox.go and
// join-service/internal/infrastructure/postgres/outbox_worker.go, both of
// which use pgx/v5 with `FOR UPDATE SKIP LOCKED` claim batches rather than
// a plain `WHERE published=false` scan, so that a single process can run
// several claim loops without double-publishing (spec.md §5 "Shared-resource
// policy").
//
// Expected schema (DB migrations are out of scope per spec.md §1; this is
// documentation, not a migration):
//
//	CREATE TABLE outbox_events (
//	  id             BIGSERIAL PRIMARY KEY,
//	  aggregate_type TEXT NOT NULL,
//	  aggregate_id   BIGINT NOT NULL,
//	  event_type     TEXT NOT NULL,
//	  payload        JSONB NOT NULL,
//	  topic          TEXT NOT NULL,
//	  partition_key  TEXT NOT NULL,
//	  published      BOOLEAN NOT NULL DEFAULT FALSE,
//	  published_at   TIMESTAMPTZ,
//	  retry_count    INT NOT NULL DEFAULT 0,
//	  dead_lettered  BOOLEAN NOT NULL DEFAULT FALSE,
//	  claimed_until  TIMESTAMPTZ,
//	  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX ON outbox_events (published, created_at);
//	CREATE INDEX ON outbox_events (published, retry_count);
package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event mirrors spec.md §3 "OutboxEvent".
type Event struct {
	ID           int64
	AggregateType string
	AggregateID   int64
	EventType     string
	Payload       []byte
	Topic         string
	PartitionKey  string
	Published     bool
	PublishedAt   *time.Time
	RetryCount    int
	DeadLettered  bool
	CreatedAt     time.Time
}

// Envelope is implemented by every outbound event type (events.ApplicationEvent,
// events.JobEvent, ...) so a command handler can insert without the outbox
// package knowing about domain payload shapes.
type Envelope interface {
	Topic() string
	PartitionKey() string
}

// Store is the concrete pgxpool-backed Outbox Store.
type Store struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

func NewStore(pool *pgxpool.Pool, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Store{pool: pool, maxAttempts: maxAttempts}
}

const insertSQL = `
INSERT INTO outbox_events
  (aggregate_type, aggregate_id, event_type, payload, topic, partition_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`

// InsertTx writes the OutboxEvent row using the caller's transaction. The
// caller MUST commit the same transaction that performed the domain write,
// satisfying spec.md §3's atomicity invariant: either both rows exist or
// neither does.
func (s *Store) InsertTx(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID int64, eventType string, payload []byte, env Envelope, now time.Time) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, insertSQL,
		aggregateType, aggregateID, eventType, payload, env.Topic(), env.PartitionKey(), now.UTC(),
	).Scan(&id)
	return id, err
}

const claimSQL = `
SELECT id, aggregate_type, aggregate_id, event_type, payload, topic, partition_key,
       retry_count, created_at
FROM outbox_events
WHERE published = FALSE
  AND dead_lettered = FALSE
  AND retry_count < $1
  AND (claimed_until IS NULL OR claimed_until <= now())
ORDER BY created_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`

const markClaimedSQL = `UPDATE outbox_events SET claimed_until = $2 WHERE id = $1`

// ClaimBatch selects up to n unpublished, non-dead-lettered events in FIFO
// createdAt order (spec.md §4.1 step 1) and reserves them for
// inFlightWindow so a second publisher instance doesn't pick the same rows
// up mid-publish (spec.md §5: "If multiple publisher instances run, use
// either a per-row advisory lock or a short select-for-update batch").
func (s *Store) ClaimBatch(ctx context.Context, n int, inFlightWindow time.Duration) ([]Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, claimSQL, s.maxAttempts, n)
	if err != nil {
		return nil, err
	}

	var batch []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload,
			&e.Topic, &e.PartitionKey, &e.RetryCount, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		batch = append(batch, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if len(batch) == 0 {
		return nil, tx.Commit(ctx)
	}

	claimedUntil := time.Now().Add(inFlightWindow)
	for _, e := range batch {
		if _, err := tx.Exec(ctx, markClaimedSQL, e.ID, claimedUntil); err != nil {
			return nil, err
		}
	}

	return batch, tx.Commit(ctx)
}

const markPublishedSQL = `
UPDATE outbox_events SET published = TRUE, published_at = $2, claimed_until = NULL WHERE id = $1
`

// MarkPublished transitions the event to published=true (spec.md §4.1 step
// 3). It must never be called twice for the same successful publish to
// stay true to "published=true ⇒ accepted at least once"; idempotent
// re-application (same id, same timestamp) is harmless if it happens.
func (s *Store) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, markPublishedSQL, id, at.UTC())
	return err
}

const markFailedSQL = `
UPDATE outbox_events
SET retry_count = retry_count + 1,
    dead_lettered = (retry_count + 1 >= $2),
    claimed_until = NULL
WHERE id = $1
`

// MarkFailed increments retryCount (spec.md §4.1 step 4) and flips
// dead_lettered once the new count reaches maxAttempts, excluding the row
// from future polling while keeping it for inspection (spec.md §3
// lifecycle: "the event becomes a dead letter ... and is surfaced via a
// metric").
func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, markFailedSQL, id, s.maxAttempts)
	return err
}

// ResetRetryCount lets an operator resurrect a dead-lettered event for
// another attempt (spec.md §3 lifecycle: "operators may reset retryCount").
func (s *Store) ResetRetryCount(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox_events SET retry_count = 0, dead_lettered = FALSE, claimed_until = NULL WHERE id = $1`, id)
	return err
}
