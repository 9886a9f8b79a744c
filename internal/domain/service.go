// Package domain defines the activity directory and enrollment logic.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"example.com/mergington/internal/observability"
)

var (
	// ErrActivityNotFound is returned when no activity has the requested name.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrConflict groups enrollment state conflicts.
	ErrConflict = errors.New("enrollment conflict")
	// ErrAlreadySignedUp is returned when the email is already enrolled.
	ErrAlreadySignedUp = fmt.Errorf("%w: student is already signed up", ErrConflict)
	// ErrNotSignedUp is returned when unregistering an email that is not enrolled.
	ErrNotSignedUp = fmt.Errorf("%w: student is not signed up for this activity", ErrConflict)
)

// Service orchestrates the activity directory and enrollment workflows.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger used by the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActivities returns every activity. The result is never nil.
func (s *Service) ListActivities(ctx context.Context) ([]Activity, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin list: %w", err)
	}
	defer uow.Rollback(ctx)

	activities, err := uow.ListActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit list: %w", err)
	}
	if activities == nil {
		activities = []Activity{}
	}
	return activities, nil
}

// Signup enrolls email in the named activity and returns a confirmation message.
func (s *Service) Signup(ctx context.Context, activityName, email string) (string, error) {
	err := s.mutate(ctx, activityName, func(uow UnitOfWork, activity *Activity) error {
		if activity.HasParticipant(email) {
			return ErrAlreadySignedUp
		}
		added, err := uow.AddParticipant(ctx, activity.Name, email)
		if err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
		if !added {
			return ErrAlreadySignedUp
		}
		return uow.RecordEvent(ctx, newEnrollmentEvent(EventSignedUp, activity.Name, email, s.now()))
	})
	s.record(ctx, observability.OperationSignup, activityName, email, err)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Signed up %s for %s", email, activityName), nil
}

// Unregister removes email from the named activity and returns a confirmation message.
func (s *Service) Unregister(ctx context.Context, activityName, email string) (string, error) {
	err := s.mutate(ctx, activityName, func(uow UnitOfWork, activity *Activity) error {
		if !activity.HasParticipant(email) {
			return ErrNotSignedUp
		}
		removed, err := uow.RemoveParticipant(ctx, activity.Name, email)
		if err != nil {
			return fmt.Errorf("remove participant: %w", err)
		}
		if !removed {
			return ErrNotSignedUp
		}
		return uow.RecordEvent(ctx, newEnrollmentEvent(EventUnregistered, activity.Name, email, s.now()))
	})
	s.record(ctx, observability.OperationUnregister, activityName, email, err)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Unregistered %s from %s", email, activityName), nil
}

// mutate runs change inside a unit of work holding the activity lock and
// commits only when change succeeds.
func (s *Service) mutate(ctx context.Context, activityName string, change func(UnitOfWork, *Activity) error) error {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin enrollment: %w", err)
	}
	defer uow.Rollback(ctx)

	activity, err := uow.LockActivity(ctx, activityName)
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}
	if activity == nil {
		return ErrActivityNotFound
	}

	if err := change(uow, activity); err != nil {
		return err
	}
	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, operation, activityName, email string, err error) {
	outcome := observability.OutcomeOK
	switch {
	case err == nil:
		observability.RecordEnrollmentChanged(s.now())
	case errors.Is(err, ErrActivityNotFound):
		outcome = observability.OutcomeNotFound
	case errors.Is(err, ErrConflict):
		outcome = observability.OutcomeConflict
	default:
		outcome = observability.OutcomeError
	}
	observability.RecordEnrollment(operation, outcome)

	level := slog.LevelInfo
	if outcome == observability.OutcomeError {
		level = slog.LevelError
	}
	attrs := []any{"operation", operation, "activity", activityName, "email", email, "outcome", outcome}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.logger.Log(ctx, level, "enrollment processed", attrs...)
}
