// Package sqlite implements the activity store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"example.com/mergington/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed persistence for activities and enrollment events.
type Store struct {
	db *sql.DB
}

var _ domain.Store = (*Store)(nil)

// connectionPragmas run on every connection the driver opens.
var connectionPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and every unit of work
	// queues behind the one in flight.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// dsn appends the connection pragmas as modernc _pragma parameters.
func dsn(path string) string {
	params := make(url.Values)
	for _, pragma := range connectionPragmas {
		params.Add("_pragma", pragma)
	}
	name := path
	if !strings.HasPrefix(name, "file:") {
		name = "file:" + name
	}
	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return name + sep + params.Encode()
}

// Begin opens a transaction on the single connection.
func (s *Store) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &unitOfWork{tx: tx}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Events returns the recorded enrollment events for one activity, oldest first.
func (s *Store) Events(ctx context.Context, activityName string) ([]domain.EnrollmentEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_id, event_type, activity_name, email, occurred_at
        FROM enrollment_events WHERE activity_name = ? ORDER BY rowid`, activityName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EnrollmentEvent
	for rows.Next() {
		var (
			event      domain.EnrollmentEvent
			eventType  string
			occurredAt string
		)
		if err := rows.Scan(&event.ID, &eventType, &event.ActivityName, &event.Email, &occurredAt); err != nil {
			return nil, err
		}
		event.Type = domain.EventType(eventType)
		if event.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt); err != nil {
			return nil, fmt.Errorf("parse occurred_at for event %s: %w", event.ID, err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

type unitOfWork struct {
	tx   *sql.Tx
	done bool
}

func (u *unitOfWork) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	rows, err := u.tx.QueryContext(ctx, `SELECT name, description, schedule, max_participants
        FROM activities ORDER BY name`)
	if err != nil {
		return nil, err
	}

	results := make([]domain.Activity, 0)
	index := make(map[string]int)
	for rows.Next() {
		var activity domain.Activity
		if err := rows.Scan(&activity.Name, &activity.Description, &activity.Schedule, &activity.MaxParticipants); err != nil {
			rows.Close()
			return nil, err
		}
		activity.Participants = []string{}
		index[activity.Name] = len(results)
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	participants, err := u.tx.QueryContext(ctx, `SELECT activity_name, email
        FROM activity_participants ORDER BY participant_id`)
	if err != nil {
		return nil, err
	}
	defer participants.Close()

	for participants.Next() {
		var name, email string
		if err := participants.Scan(&name, &email); err != nil {
			return nil, err
		}
		if i, ok := index[name]; ok {
			results[i].Participants = append(results[i].Participants, email)
		}
	}
	return results, participants.Err()
}

func (u *unitOfWork) LockActivity(ctx context.Context, name string) (*domain.Activity, error) {
	var activity domain.Activity
	err := u.tx.QueryRowContext(ctx, `SELECT name, description, schedule, max_participants
        FROM activities WHERE name = ?`, name).
		Scan(&activity.Name, &activity.Description, &activity.Schedule, &activity.MaxParticipants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := u.tx.QueryContext(ctx, `SELECT email FROM activity_participants
        WHERE activity_name = ? ORDER BY participant_id`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activity.Participants = []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		activity.Participants = append(activity.Participants, email)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &activity, nil
}

func (u *unitOfWork) PutActivity(ctx context.Context, activity domain.Activity) error {
	if activity.Name == "" {
		return fmt.Errorf("activity name is required")
	}
	_, err := u.tx.ExecContext(ctx, `INSERT INTO activities (name, description, schedule, max_participants)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (name) DO UPDATE
        SET description = excluded.description,
            schedule = excluded.schedule,
            max_participants = excluded.max_participants`,
		activity.Name, activity.Description, activity.Schedule, activity.MaxParticipants)
	return err
}

func (u *unitOfWork) AddParticipant(ctx context.Context, activityName, email string) (bool, error) {
	res, err := u.tx.ExecContext(ctx, `INSERT INTO activity_participants (activity_name, email)
        VALUES (?, ?) ON CONFLICT (activity_name, email) DO NOTHING`, activityName, email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (u *unitOfWork) RemoveParticipant(ctx context.Context, activityName, email string) (bool, error) {
	res, err := u.tx.ExecContext(ctx, `DELETE FROM activity_participants
        WHERE activity_name = ? AND email = ?`, activityName, email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (u *unitOfWork) RecordEvent(ctx context.Context, event domain.EnrollmentEvent) error {
	_, err := u.tx.ExecContext(ctx, `INSERT INTO enrollment_events (event_id, event_type, activity_name, email, occurred_at)
        VALUES (?, ?, ?, ?, ?)`,
		event.ID, string(event.Type), event.ActivityName, event.Email, event.OccurredAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return sql.ErrTxDone
	}
	u.done = true
	return u.tx.Commit()
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
