package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQWriter persists events that could not be published so the DLQ manager can retry them.
type DLQWriter struct {
	pool      *pgxpool.Pool
	baseDelay time.Duration
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
// baseDelay is the backoff base for events that already went through the DLQ.
func NewDLQWriter(pool *pgxpool.Pool, baseDelay time.Duration) *DLQWriter {
	return &DLQWriter{pool: pool, baseDelay: baseDelay}
}

// Write records a failed outbox message in the DLQ alongside the supplied
// reason. The entry keeps the message's retry count; a first failure is due
// immediately and later ones back off exponentially.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, event_key, retry_count, last_attempt_at, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, NOW(), NOW() + $12::interval)`,
		msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey, msg.EventKey,
		msg.RetryCount, w.retryDelay(msg.RetryCount),
	)
	return err
}

func (w *DLQWriter) retryDelay(retryCount int) time.Duration {
	if retryCount == 0 {
		return 0
	}
	return backoffDelay(w.baseDelay, retryCount)
}
