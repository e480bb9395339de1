package outbox

import (
	"context"
	"log/slog"
	"sync"

	otelx "github.com/avdupont/shopmesh/libs/otel"
)

// Envelope is a pending domain event awaiting publication.
// The Kafka topic name equals EventType (event per topic).
type Envelope struct {
	EventID     string
	EventType   string
	Key         []byte
	Payload     []byte
	Traceparent string
	Tracestate  string
}

// Queue is the bounded in-memory outbox backing the user service. Events are
// appended after the authoritative write commits and drained by the
// background Publisher, so a broker outage never fails the originating
// request. State is volatile: when the queue is full the oldest pending
// event is dropped with an error log and counted.
type Queue struct {
	mu       sync.Mutex
	pending  []Envelope
	capacity int
	dropped  int64
	logger   *slog.Logger
}

func NewQueue(capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{capacity: capacity, logger: logger}
}

// Enqueue appends an event and captures the caller's trace context so the
// eventual Kafka message links back to the originating request.
func (q *Queue) Enqueue(ctx context.Context, evt Envelope) {
	evt.Traceparent, evt.Tracestate = otelx.TraceContextStrings(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) >= q.capacity {
		q.dropOldestLocked()
	}
	q.pending = append(q.pending, evt)
}

// Fetch removes and returns up to limit pending events, oldest first.
func (q *Queue) Fetch(limit int) []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.pending) {
		limit = len(q.pending)
	}
	if limit == 0 {
		return nil
	}
	batch := make([]Envelope, limit)
	copy(batch, q.pending[:limit])
	q.pending = q.pending[limit:]
	return batch
}

// Requeue puts a failed batch back at the front, preserving per-key order
// relative to events enqueued while the batch was in flight.
func (q *Queue) Requeue(batch []Envelope) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(batch, q.pending...)
	for len(q.pending) > q.capacity {
		q.dropOldestLocked()
	}
}

// dropOldestLocked discards the oldest pending event under capacity
// pressure. The replica caches downstream will never see it, so every drop
// is logged at error level.
func (q *Queue) dropOldestLocked() {
	victim := q.pending[0]
	q.pending = q.pending[1:]
	q.dropped++
	q.logger.Error("outbox full, oldest event dropped",
		"event_id", victim.EventID, "event_type", victim.EventType, "dropped_total", q.dropped)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped reports how many events were discarded due to capacity pressure.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
