//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/events"
	"example.com/mergington/internal/persistence/postgres"
)

func TestDispatcherPublishesEnrollmentEvents(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	signup(t, ctx, pool, "Chess Club", "michael@mergington.edu")

	producer := &recordingProducer{}
	registry := &fakeRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.batches, 1)
	require.Equal(t, events.EnrollmentTopic, producer.batches[0].topic)
	require.Len(t, producer.batches[0].messages, 1)
	record := producer.batches[0].messages[0]
	require.Equal(t, "Chess Club", string(record.Key))
	require.Equal(t, events.TypeParticipantSignedUp, header(record, events.HeaderEventType))
	require.NotEmpty(t, header(record, events.HeaderEventID))

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.batches, 1, "published rows are not sent again")
}

func TestDispatcherRoutesFailuresToDLQAndManagerRequeues(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	signup(t, ctx, pool, "Gym Class", "john@mergington.edu")

	producer := &recordingProducer{err: errors.New("kafka write failed")}
	registry := &fakeRegistry{id: 7}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues(events.EnrollmentTopic))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues(events.EnrollmentTopic)), 0.0001)

	var dlqCount int
	var eventKey string
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*), MAX(event_key) FROM outbox_dlq`).Scan(&dlqCount, &eventKey))
	require.Equal(t, 1, dlqCount)
	require.NotEmpty(t, eventKey)

	beforeRequeued := testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(events.EnrollmentTopic, events.TypeParticipantSignedUp, dlqOutcomeRequeued))
	manager := NewDLQManager(pool, 5, time.Second, nil)
	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)
	require.InDelta(t, beforeRequeued+1, testutil.ToFloat64(dlqEntriesCounter.WithLabelValues(events.EnrollmentTopic, events.TypeParticipantSignedUp, dlqOutcomeRequeued)), 0.0001)

	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Equal(t, 0, dlqCount)

	producer.err = nil
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.batches, 1)
	require.Equal(t, eventKey, header(producer.batches[0].messages[0], events.HeaderEventID))
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	_, err := pool.Exec(ctx, `INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, event_key, retry_count)
        VALUES (1, $1, $2, '{}', 'broker down', 'activity', 'Chess Club', $3, 'Chess Club', 'evt-1', 3)`,
		events.TypeParticipantSignedUp, events.EnrollmentTopic, events.EnrollmentSubject)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 3, time.Second, nil)
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)

	processed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed, "quarantined entries are not picked up again")
}

func TestRepeatedDeliveryFailuresBackOffThenQuarantine(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	signup(t, ctx, pool, "Chess Club", "michael@mergington.edu")

	const maxRetries = 3
	producer := &recordingProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &fakeRegistry{id: 7}, time.Hour, 5, WithRetryBaseDelay(time.Hour))
	manager := NewDLQManager(pool, maxRetries, time.Hour, nil)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		require.NoError(t, dispatcher.processBatch(ctx))

		var retries int
		var backedOff bool
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT retry_count, next_retry_at > NOW() FROM outbox_dlq WHERE quarantined_at IS NULL`,
		).Scan(&retries, &backedOff))
		require.Equal(t, attempt, retries, "retry count survives the outbox round trip")
		require.Equal(t, attempt > 0, backedOff, "only the first failure is retried immediately")

		_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET next_retry_at = NOW()`)
		require.NoError(t, err)

		processed, err := manager.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, processed)
	}

	var quarantined, total int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE quarantined_at IS NOT NULL), COUNT(*) FROM outbox_dlq`,
	).Scan(&quarantined, &total))
	require.Equal(t, 1, quarantined)
	require.Equal(t, 1, total)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Zero(t, pending, "a quarantined event is not requeued again")
}

func TestDLQManagerSchedulesRetryWhenRequeueFails(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	_, err := pool.Exec(ctx, `INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, event_key)
        VALUES (1, $1, $2, '{}', 'broker down', 'activity', 'Chess Club', '', 'Chess Club', 'evt-1')`,
		events.TypeParticipantSignedUp, events.EnrollmentTopic)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 3, time.Minute, nil)
	_, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)

	var retries int
	var reason string
	var due bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT retry_count, reason, next_retry_at > NOW() FROM outbox_dlq`).Scan(&retries, &reason, &due))
	require.Equal(t, 1, retries)
	require.Contains(t, reason, "missing schema_subject")
	require.True(t, due)
}

func signup(t *testing.T, ctx context.Context, pool *pgxpool.Pool, activity, email string) {
	t.Helper()
	store := postgres.NewStore(pool)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.PutActivity(ctx, domain.Activity{Name: activity}))
	require.NoError(t, uow.Commit(ctx))

	_, err = domain.NewService(store).Signup(ctx, activity, email)
	require.NoError(t, err)
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("mergington"),
		postgrescontainer.WithUsername("mergington"),
		postgrescontainer.WithPassword("mergington"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := postgres.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.EnsureSchema(ctx, pool))
	return pool
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
