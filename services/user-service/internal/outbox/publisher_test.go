package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	written []kafka.Message
	fail    bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.fail {
		return errors.New("broker unreachable")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishBatchDrainsQueue(t *testing.T) {
	q := NewQueue(10, testLogger())
	q.Enqueue(context.Background(), envelope(1))
	q.Enqueue(context.Background(), envelope(2))

	w := &fakeWriter{}
	p := newPublisher(q, w, testLogger(), PublisherConfig{})

	if err := p.publishBatch(context.Background()); err != nil {
		t.Fatalf("publishBatch failed: %v", err)
	}
	if len(w.written) != 2 {
		t.Fatalf("expected 2 messages written, got %d", len(w.written))
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d pending", q.Len())
	}

	msg := w.written[0]
	if msg.Topic != "user.created.v1" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}
	var eventID string
	for _, h := range msg.Headers {
		if h.Key == "event_id" {
			eventID = string(h.Value)
		}
	}
	if eventID != "evt-1" {
		t.Fatalf("expected event_id header evt-1, got %q", eventID)
	}
}

func TestPublishBatchRequeuesOnFailure(t *testing.T) {
	q := NewQueue(10, testLogger())
	q.Enqueue(context.Background(), envelope(1))

	w := &fakeWriter{fail: true}
	p := newPublisher(q, w, testLogger(), PublisherConfig{})

	if err := p.publishBatch(context.Background()); err == nil {
		t.Fatal("expected error from failed write")
	}
	if q.Len() != 1 {
		t.Fatalf("failed batch must stay queued, got %d pending", q.Len())
	}

	// The queued event publishes once the broker is back.
	w.fail = false
	if err := p.publishBatch(context.Background()); err != nil {
		t.Fatalf("publishBatch failed after recovery: %v", err)
	}
	if len(w.written) != 1 || q.Len() != 0 {
		t.Fatalf("expected 1 written / 0 pending, got %d / %d", len(w.written), q.Len())
	}
}

func TestFailureBackoffIsBounded(t *testing.T) {
	p := newPublisher(NewQueue(1, testLogger()), &fakeWriter{}, testLogger(), PublisherConfig{PollEvery: time.Second})
	for i := 0; i < 10; i++ {
		p.failure()
	}
	if p.backoff != p.maxBackoff {
		t.Fatalf("expected backoff capped at %v, got %v", p.maxBackoff, p.backoff)
	}
	p.success()
	if p.backoff != 0 || !p.nextAttempt.IsZero() {
		t.Fatal("success must reset the backoff state")
	}
}
