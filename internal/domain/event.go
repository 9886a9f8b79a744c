package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an enrollment change.
type EventType string

const (
	EventSignedUp     EventType = "enrollment.signed_up"
	EventUnregistered EventType = "enrollment.unregistered"
)

// EnrollmentEvent records a committed participant change.
type EnrollmentEvent struct {
	ID           string
	Type         EventType
	ActivityName string
	Email        string
	OccurredAt   time.Time
}

func newEnrollmentEvent(eventType EventType, activityName, email string, now time.Time) EnrollmentEvent {
	return EnrollmentEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		ActivityName: activityName,
		Email:        email,
		OccurredAt:   now.UTC(),
	}
}
