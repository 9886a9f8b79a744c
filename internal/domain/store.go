package domain

import "context"

// Store opens units of work against the activity tables.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// UnitOfWork is a transaction-scoped view of the store. Callers must defer
// Rollback immediately after Begin; Rollback after a successful Commit is a
// no-op, so the underlying connection is always released.
type UnitOfWork interface {
	// ListActivities returns every activity with its participants.
	ListActivities(ctx context.Context) ([]Activity, error)
	// LockActivity loads one activity and holds it against concurrent
	// enrollment changes until the unit of work ends. It returns (nil, nil)
	// when no activity has that name.
	LockActivity(ctx context.Context, name string) (*Activity, error)
	// PutActivity creates the activity or updates its description, schedule
	// and capacity. Participants are left untouched.
	PutActivity(ctx context.Context, activity Activity) error
	// AddParticipant appends email, reporting false if it was already enrolled.
	AddParticipant(ctx context.Context, activityName, email string) (bool, error)
	// RemoveParticipant deletes email, reporting false if it was not enrolled.
	RemoveParticipant(ctx context.Context, activityName, email string) (bool, error)
	// RecordEvent stores an enrollment event alongside the change.
	RecordEvent(ctx context.Context, event EnrollmentEvent) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
