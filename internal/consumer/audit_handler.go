package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mergington/internal/events"
)

// ErrUnknownEventType is returned for records whose event_type header is not an enrollment event.
var ErrUnknownEventType = fmt.Errorf("%w: unknown event type", ErrPermanent)

// AuditHandler writes consumed enrollment events into enrollment_event_log.
type AuditHandler struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewAuditHandler constructs a handler backed by the provided pool.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool, now: time.Now}
}

// Handle stores the event. A redelivered record (same topic, partition and
// offset) is ignored.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	activity, err := activityName(msg)
	if err != nil {
		return err
	}

	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = h.now().UTC()
	}

	_, err = h.pool.Exec(ctx,
		`INSERT INTO enrollment_event_log (event_type, event_key, activity_name, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.EventID,
		activity,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		receivedAt,
	)
	return err
}

// activityName validates the payload against its event type and returns the activity it concerns.
func activityName(msg Message) (string, error) {
	switch msg.EventType {
	case events.TypeParticipantSignedUp:
		var payload events.ParticipantSignedUp
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return "", fmt.Errorf("%w: decode %s: %w", ErrPermanent, msg.EventType, err)
		}
		return payload.ActivityName, nil
	case events.TypeParticipantUnregistered:
		var payload events.ParticipantUnregistered
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return "", fmt.Errorf("%w: decode %s: %w", ErrPermanent, msg.EventType, err)
		}
		return payload.ActivityName, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, msg.EventType)
	}
}
