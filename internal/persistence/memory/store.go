// Package memory provides an in-process activity store for tests and local demos.
package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"

	"example.com/mergington/internal/domain"
)

// ErrClosed is returned by Begin after Close.
var ErrClosed = errors.New("memory store closed")

// Store keeps activities in maps guarded by a mutex. A unit of work holds the
// mutex from Begin until Commit or Rollback, so units of work never interleave.
type Store struct {
	mu     sync.Mutex
	state  state
	closed bool
}

type state struct {
	activities map[string]domain.Activity
	events     []domain.EnrollmentEvent
}

// NewStore constructs a Store seeded with the given activities.
func NewStore(seed ...domain.Activity) *Store {
	s := &Store{state: state{activities: make(map[string]domain.Activity)}}
	for _, activity := range seed {
		s.state.activities[activity.Name] = cloneActivity(activity)
	}
	return s
}

// Begin implements domain.Store.
func (s *Store) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	return &unitOfWork{store: s, working: s.state.clone()}, nil
}

// Close implements domain.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Events returns a copy of the recorded enrollment events in commit order.
func (s *Store) Events() []domain.EnrollmentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.events)
}

type unitOfWork struct {
	store   *Store
	working state
	done    bool
}

func (u *unitOfWork) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	out := make([]domain.Activity, 0, len(u.working.activities))
	for _, activity := range u.working.activities {
		out = append(out, cloneActivity(activity))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (u *unitOfWork) LockActivity(ctx context.Context, name string) (*domain.Activity, error) {
	activity, ok := u.working.activities[name]
	if !ok {
		return nil, nil
	}
	clone := cloneActivity(activity)
	return &clone, nil
}

func (u *unitOfWork) PutActivity(ctx context.Context, activity domain.Activity) error {
	if strings.TrimSpace(activity.Name) == "" {
		return errors.New("activity name is required")
	}
	existing, ok := u.working.activities[activity.Name]
	if ok {
		existing.Description = activity.Description
		existing.Schedule = activity.Schedule
		existing.MaxParticipants = activity.MaxParticipants
		u.working.activities[activity.Name] = existing
		return nil
	}
	u.working.activities[activity.Name] = domain.Activity{
		Name:            activity.Name,
		Description:     activity.Description,
		Schedule:        activity.Schedule,
		MaxParticipants: activity.MaxParticipants,
		Participants:    []string{},
	}
	return nil
}

func (u *unitOfWork) AddParticipant(ctx context.Context, activityName, email string) (bool, error) {
	activity, ok := u.working.activities[activityName]
	if !ok {
		return false, domain.ErrActivityNotFound
	}
	if activity.HasParticipant(email) {
		return false, nil
	}
	activity.Participants = append(activity.Participants, email)
	u.working.activities[activityName] = activity
	return true, nil
}

func (u *unitOfWork) RemoveParticipant(ctx context.Context, activityName, email string) (bool, error) {
	activity, ok := u.working.activities[activityName]
	if !ok {
		return false, domain.ErrActivityNotFound
	}
	idx := slices.Index(activity.Participants, email)
	if idx < 0 {
		return false, nil
	}
	activity.Participants = slices.Delete(activity.Participants, idx, idx+1)
	u.working.activities[activityName] = activity
	return true, nil
}

func (u *unitOfWork) RecordEvent(ctx context.Context, event domain.EnrollmentEvent) error {
	u.working.events = append(u.working.events, event)
	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.store.state = u.working
	u.finish()
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.finish()
	return nil
}

func (u *unitOfWork) finish() {
	u.done = true
	u.store.mu.Unlock()
}

func (s state) clone() state {
	activities := make(map[string]domain.Activity, len(s.activities))
	for name, activity := range s.activities {
		activities[name] = cloneActivity(activity)
	}
	return state{activities: activities, events: slices.Clone(s.events)}
}

func cloneActivity(a domain.Activity) domain.Activity {
	a.Participants = append([]string{}, a.Participants...)
	return a
}
