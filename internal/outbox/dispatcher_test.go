package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	frame := encodeWireFormat(258, []byte(`{"a":1}`))

	require.Len(t, frame, 5+len(`{"a":1}`))
	assert.Equal(t, byte(0), frame[0])
	assert.Equal(t, uint32(258), binary.BigEndian.Uint32(frame[1:5]))
	assert.Equal(t, `{"a":1}`, string(frame[5:]))
}

func TestDeliverSetsKeyHeadersAndFraming(t *testing.T) {
	producer := &recordingProducer{}
	registry := &fakeRegistry{id: 42}
	d := &Dispatcher{producer: producer, registry: registry, logger: slog.Default()}

	messages := []Message{
		enrollmentMessage(1, events.TypeParticipantSignedUp, "Chess Club", "evt-1"),
		enrollmentMessage(2, events.TypeParticipantUnregistered, "Chess Club", "evt-2"),
		enrollmentMessage(3, events.TypeParticipantSignedUp, "Gym Class", "evt-3"),
	}

	require.NoError(t, d.deliver(context.Background(), messages))

	require.Len(t, producer.batches, 1)
	batch := producer.batches[0]
	assert.Equal(t, events.EnrollmentTopic, batch.topic)
	require.Len(t, batch.messages, 3)

	first := batch.messages[0]
	assert.Equal(t, "Chess Club", string(first.Key))
	assert.Equal(t, uint32(42), binary.BigEndian.Uint32(first.Value[1:5]))
	assert.Equal(t, events.TypeParticipantSignedUp, header(first, events.HeaderEventType))
	assert.Equal(t, events.EnrollmentSubject, header(first, events.HeaderSchemaSubject))
	assert.Equal(t, "evt-1", header(first, events.HeaderEventID))

	assert.Equal(t, events.TypeParticipantUnregistered, header(batch.messages[1], events.HeaderEventType))
	assert.Equal(t, "Gym Class", string(batch.messages[2].Key))

	require.Len(t, registry.subjects, 1, "schema ID is cached per subject and schema")
	assert.Equal(t, events.EnrollmentSubject, registry.subjects[0])
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	producer := &recordingProducer{}
	registry := &fakeRegistry{}
	d := &Dispatcher{producer: producer, registry: registry, logger: slog.Default()}

	err := d.deliver(context.Background(), []Message{enrollmentMessage(1, "enrollment.unknown", "Chess Club", "evt-1")})

	require.ErrorContains(t, err, "no schema metadata for event_type=enrollment.unknown")
	assert.Empty(t, producer.batches)
	assert.Empty(t, registry.subjects)
}

func TestDeliverPropagatesFailures(t *testing.T) {
	msg := enrollmentMessage(1, events.TypeParticipantSignedUp, "Chess Club", "evt-1")

	d := &Dispatcher{producer: &recordingProducer{}, registry: &fakeRegistry{err: errors.New("registry down")}, logger: slog.Default()}
	require.ErrorContains(t, d.deliver(context.Background(), []Message{msg}), "registry down")

	d = &Dispatcher{producer: &recordingProducer{err: errors.New("broker down")}, registry: &fakeRegistry{}, logger: slog.Default()}
	require.ErrorContains(t, d.deliver(context.Background(), []Message{msg}), "broker down")
}

func TestBackoffDelay(t *testing.T) {
	m := &DLQManager{baseDelay: time.Minute}

	assert.Equal(t, time.Minute, m.backoffDelay(1))
	assert.Equal(t, 2*time.Minute, m.backoffDelay(2))
	assert.Equal(t, 16*time.Minute, m.backoffDelay(5))
	assert.Equal(t, time.Hour, m.backoffDelay(7))
	assert.Equal(t, time.Hour, m.backoffDelay(64))
	assert.Equal(t, time.Minute, m.backoffDelay(0))
}

func TestDLQWriterRetryDelay(t *testing.T) {
	w := NewDLQWriter(nil, time.Minute)

	assert.Zero(t, w.retryDelay(0), "first failure is due immediately")
	assert.Equal(t, time.Minute, w.retryDelay(1))
	assert.Equal(t, 4*time.Minute, w.retryDelay(3))
	assert.Equal(t, time.Hour, w.retryDelay(10))
}

func TestSchemaRegistryReturnsExistingSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/subjects/enrollment_events-value/versions/latest", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]int{"id": 7})
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL+"/").EnsureSchema(context.Background(), events.EnrollmentSubject, enrollmentEventSchema)
	require.NoError(t, err)
	assert.Equal(t, 7, id)
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var registered map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "/subjects/enrollment_events-value/versions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
		_ = json.NewEncoder(w).Encode(map[string]int{"id": 11})
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), events.EnrollmentSubject, enrollmentEventSchema)
	require.NoError(t, err)
	assert.Equal(t, 11, id)
	assert.Equal(t, "JSON", registered["schemaType"])
	assert.JSONEq(t, enrollmentEventSchema, registered["schema"])
}

func TestSchemaRegistryDoesNotRegisterOnServerError(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), events.EnrollmentSubject, enrollmentEventSchema)
	require.ErrorContains(t, err, "status 500")
	assert.Zero(t, posts)
}

func enrollmentMessage(id int64, eventType, activity, eventKey string) Message {
	payload, _ := json.Marshal(events.ParticipantSignedUp{
		EventID:      eventKey,
		ActivityName: activity,
		Email:        "student@mergington.edu",
		OccurredAt:   time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC),
	})
	return Message{
		EventID:       id,
		AggregateType: "activity",
		AggregateID:   activity,
		EventType:     eventType,
		Topic:         events.EnrollmentTopic,
		SchemaSubject: events.EnrollmentSubject,
		PartitionKey:  activity,
		EventKey:      eventKey,
		Payload:       payload,
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
