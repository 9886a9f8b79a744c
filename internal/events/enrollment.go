// Package events defines the enrollment event payloads published to Kafka.
package events

import "time"

// Event types carried in the outbox and the Kafka event_type header.
const (
	TypeParticipantSignedUp     = "enrollment.signed_up"
	TypeParticipantUnregistered = "enrollment.unregistered"
)

// ParticipantSignedUp is emitted when a student joins an activity.
type ParticipantSignedUp struct {
	EventID      string    `json:"event_id"`
	ActivityName string    `json:"activity_name"`
	Email        string    `json:"email"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ParticipantUnregistered is emitted when a student leaves an activity.
type ParticipantUnregistered struct {
	EventID      string    `json:"event_id"`
	ActivityName string    `json:"activity_name"`
	Email        string    `json:"email"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EnrollmentTopic is the Kafka topic carrying every enrollment event.
const EnrollmentTopic = "enrollment_events"

// EnrollmentSubject is the Schema Registry subject for EnrollmentTopic values.
const EnrollmentSubject = EnrollmentTopic + "-value"

// Kafka record headers set by the outbox dispatcher.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
	HeaderEventID       = "event_id"
)
