package outbox

import (
	"context"
	"slices"
	"sync"

	"github.com/segmentio/kafka-go"
)

// recordingProducer keeps every batch it is asked to write, or fails with err.
type recordingProducer struct {
	mu      sync.Mutex
	err     error
	batches []sentBatch
}

type sentBatch struct {
	topic    string
	messages []kafka.Message
}

func (p *recordingProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, sentBatch{topic: topic, messages: slices.Clone(msgs)})
	return nil
}

// fakeRegistry hands out a fixed schema ID (1 when unset) and records subjects.
type fakeRegistry struct {
	mu       sync.Mutex
	id       int
	err      error
	subjects []string
}

func (r *fakeRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	if r.err != nil {
		return 0, r.err
	}
	return max(r.id, 1), nil
}
