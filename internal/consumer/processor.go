// Package consumer reads enrollment events from Kafka and hands them to a Handler.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/mergington/internal/events"
)

// ErrPermanent marks handler errors that no retry can fix. The processor
// commits past such records instead of retrying them.
var ErrPermanent = errors.New("permanent handler error")

// maxHandlerBackoff caps the pause between handler retries.
const maxHandlerBackoff = 30 * time.Second

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	EventID       string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetryDelay sets the pause after a failed fetch and the first pause
// between handler retries.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Processor) {
		p.retryDelay = d
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader     Reader
	handler    Handler
	logger     *slog.Logger
	retryDelay time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:     reader,
		handler:    handler,
		logger:     slog.Default().With("component", "consumer"),
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context
// is cancelled or the reader is closed.
//
// Malformed records and records rejected with ErrPermanent are committed and
// skipped. Any other handler error retries the same record with exponential
// backoff, so no later offset of the partition is committed before it.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return err
			}
			p.logger.Warn("fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryDelay):
			}
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Error("decode failed", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", decodeErr)
			recordDecodeError(msg.Topic)
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Error("commit failed after decode error", "error", commitErr)
			}
			continue
		}

		handled, err := p.handle(ctx, event)
		if err != nil {
			return err
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Error("commit failed", "offset", msg.Offset, "error", commitErr)
		} else if handled {
			recordProcessed(event)
		}
	}
}

// handle runs the handler until it succeeds or rejects the record as
// permanent. handled is false for a permanent rejection. The only error
// returned is the context's.
func (p *Processor) handle(ctx context.Context, event Message) (handled bool, err error) {
	delay := max(p.retryDelay, time.Millisecond)
	for {
		handleErr := p.handler.Handle(ctx, event)
		if handleErr == nil {
			return true, nil
		}
		recordHandlerError(event)

		if errors.Is(handleErr, ErrPermanent) {
			p.logger.Error("handler rejected event, skipping", "event_type", event.EventType, "event_id", event.EventID, "offset", event.Offset, "error", handleErr)
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}

		p.logger.Warn("handler failed, retrying", "event_type", event.EventType, "event_id", event.EventID, "offset", event.Offset, "delay", delay, "error", handleErr)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxHandlerBackoff)
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < 5 {
		return Message{}, fmt.Errorf("invalid payload length: %d", len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Message{}, fmt.Errorf("unknown wire format magic byte %d", msg.Value[0])
	}

	eventType, ok := headerValue(msg, events.HeaderEventType)
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	eventID, _ := headerValue(msg, events.HeaderEventID)
	schemaSubject, _ := headerValue(msg, events.HeaderSchemaSubject)

	schemaID := int(binary.BigEndian.Uint32(msg.Value[1:5]))
	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		EventID:       string(eventID),
		SchemaSubject: string(schemaSubject),
		SchemaID:      schemaID,
		Payload:       payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
