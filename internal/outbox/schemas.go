package outbox

// enrollmentEventSchema covers every payload on the enrollment topic. The
// event_type header tells the variants apart.
const enrollmentEventSchema = `{
  "type": "object",
  "title": "EnrollmentEvent",
  "properties": {
    "event_id": {"type": "string"},
    "activity_name": {"type": "string"},
    "email": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "activity_name", "email", "occurred_at"],
  "additionalProperties": false
}`
