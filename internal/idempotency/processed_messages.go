package idempotency

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedMessages is the transactional idempotency fence used when a
// handler's side effect IS a database write, so the dedup marker and the
// side effect commit or roll back together (spec.md §4.3's alternative to
// Redis-backed dedup when the handler is itself transactional). Grounded
// verbatim on join-service's internal/infrastructure/postgres/processed_messages.go.
//
// Expected schema (DB migrations are out of scope per spec.md §1):
//
//	CREATE TABLE processed_messages (
//	  message_id   TEXT NOT NULL,
//	  handler_name TEXT NOT NULL,
//	  processed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	  PRIMARY KEY (message_id, handler_name)
//	);
//
// cmd/channelconsumer's notification dispatch handler is the consumer of
// this fence: it writes its own notification_log row inside the same
// fn(tx) passed to ProcessOnce, so the fence insert and the dispatch
// record commit or roll back together.
type ProcessedMessages struct {
	pool *pgxpool.Pool
}

func NewProcessedMessages(pool *pgxpool.Pool) *ProcessedMessages {
	return &ProcessedMessages{pool: pool}
}

// TryMarkProcessedTx inserts (messageID, handlerName) once inside tx.
// ok=true means this is the first delivery; ok=false means a duplicate.
func (r *ProcessedMessages) TryMarkProcessedTx(ctx context.Context, tx pgx.Tx, messageID, handlerName string) (bool, error) {
	messageID = strings.TrimSpace(messageID)
	handlerName = strings.TrimSpace(handlerName)
	if messageID == "" {
		return true, nil
	}
	if handlerName == "" {
		handlerName = "unknown"
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_messages (message_id, handler_name)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, messageID, handlerName)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ProcessOnce runs fn inside a transaction guarded by the processed_messages
// fence. If messageID was already processed, fn does not run and
// processed=false, err=nil. If fn fails, the transaction rolls back,
// including the fence insert, so the message remains eligible for retry.
func (r *ProcessedMessages) ProcessOnce(ctx context.Context, messageID, handlerName string, fn func(tx pgx.Tx) error) (processed bool, err error) {
	messageID = strings.TrimSpace(messageID)
	handlerName = strings.TrimSpace(handlerName)

	if messageID == "" {
		tx, txErr := r.pool.Begin(ctx)
		if txErr != nil {
			return false, txErr
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := fn(tx); err != nil {
			return false, err
		}
		return true, tx.Commit(ctx)
	}

	if handlerName == "" {
		handlerName = "unknown"
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	first, err := r.TryMarkProcessedTx(ctx, tx, messageID, handlerName)
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	if err := fn(tx); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
