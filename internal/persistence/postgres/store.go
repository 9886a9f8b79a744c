package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/events"
)

// Store provides Postgres-backed persistence for activities, participants and outbox events.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

// NewStore constructs a Store over an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Begin acquires a connection and opens a read-committed transaction on it.
func (s *Store) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, err
	}
	return &unitOfWork{conn: conn, tx: tx}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type unitOfWork struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
	done bool
}

const selectActivities = `SELECT a.name, a.description, a.schedule, a.max_participants,
        COALESCE(array_agg(p.email ORDER BY p.participant_id) FILTER (WHERE p.email IS NOT NULL), '{}') AS participants
    FROM activities a
    LEFT JOIN activity_participants p ON p.activity_name = a.name`

func (u *unitOfWork) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	rows, err := u.tx.Query(ctx, selectActivities+` GROUP BY a.name ORDER BY a.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		var activity domain.Activity
		if err := rows.Scan(&activity.Name, &activity.Description, &activity.Schedule, &activity.MaxParticipants, &activity.Participants); err != nil {
			return nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (u *unitOfWork) LockActivity(ctx context.Context, name string) (*domain.Activity, error) {
	// The row lock serialises concurrent enrollment changes on one activity.
	var locked string
	err := u.tx.QueryRow(ctx, `SELECT name FROM activities WHERE name = $1 FOR UPDATE`, name).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	row := u.tx.QueryRow(ctx, selectActivities+` WHERE a.name = $1 GROUP BY a.name`, name)
	var activity domain.Activity
	if err := row.Scan(&activity.Name, &activity.Description, &activity.Schedule, &activity.MaxParticipants, &activity.Participants); err != nil {
		return nil, err
	}
	return &activity, nil
}

func (u *unitOfWork) PutActivity(ctx context.Context, activity domain.Activity) error {
	if activity.Name == "" {
		return fmt.Errorf("activity name is required")
	}
	const stmt = `INSERT INTO activities (name, description, schedule, max_participants)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (name) DO UPDATE
        SET description = EXCLUDED.description,
            schedule = EXCLUDED.schedule,
            max_participants = EXCLUDED.max_participants`
	_, err := u.tx.Exec(ctx, stmt, activity.Name, activity.Description, activity.Schedule, activity.MaxParticipants)
	return err
}

func (u *unitOfWork) AddParticipant(ctx context.Context, activityName, email string) (bool, error) {
	tag, err := u.tx.Exec(ctx, `INSERT INTO activity_participants (activity_name, email)
        VALUES ($1,$2) ON CONFLICT (activity_name, email) DO NOTHING`, activityName, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (u *unitOfWork) RemoveParticipant(ctx context.Context, activityName, email string) (bool, error) {
	tag, err := u.tx.Exec(ctx, `DELETE FROM activity_participants WHERE activity_name = $1 AND email = $2`, activityName, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordEvent writes the event to the outbox so the dispatcher can relay it to Kafka.
func (u *unitOfWork) RecordEvent(ctx context.Context, event domain.EnrollmentEvent) error {
	meta, ok := eventCatalog[event.Type]
	if !ok {
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	body, err := json.Marshal(meta.Payload(event))
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, event_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = u.tx.Exec(ctx, stmt,
		"activity",
		event.ActivityName,
		string(event.Type),
		meta.Topic,
		meta.SchemaSubject,
		event.ActivityName,
		body,
		event.ID,
	)
	return err
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return pgx.ErrTxClosed
	}
	u.done = true
	defer u.conn.Release()
	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.conn.Release()
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
	Payload       func(domain.EnrollmentEvent) any
}

var eventCatalog = map[domain.EventType]EventMetadata{
	domain.EventSignedUp: {
		Topic:         events.EnrollmentTopic,
		SchemaSubject: events.EnrollmentSubject,
		Payload: func(e domain.EnrollmentEvent) any {
			return events.ParticipantSignedUp{
				EventID:      e.ID,
				ActivityName: e.ActivityName,
				Email:        e.Email,
				OccurredAt:   e.OccurredAt,
			}
		},
	},
	domain.EventUnregistered: {
		Topic:         events.EnrollmentTopic,
		SchemaSubject: events.EnrollmentSubject,
		Payload: func(e domain.EnrollmentEvent) any {
			return events.ParticipantUnregistered{
				EventID:      e.ID,
				ActivityName: e.ActivityName,
				Email:        e.Email,
				OccurredAt:   e.OccurredAt,
			}
		},
	},
}
