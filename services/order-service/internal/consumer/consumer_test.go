package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/avdupont/shopmesh/libs/events"
	"github.com/avdupont/shopmesh/services/order-service/internal/inbox"
	"github.com/avdupont/shopmesh/services/order-service/internal/replica"
	"github.com/segmentio/kafka-go"
)

type step struct {
	msg kafka.Message
	err error
}

// scriptedReader replays a fixed sequence, then blocks until cancellation.
type scriptedReader struct {
	mu       sync.Mutex
	steps    []step
	drained  chan struct{}
	drainOne sync.Once
}

func newScriptedReader(steps ...step) *scriptedReader {
	return &scriptedReader{steps: steps, drained: make(chan struct{})}
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.steps) == 0 {
		r.mu.Unlock()
		r.drainOne.Do(func() { close(r.drained) })
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	s := r.steps[0]
	r.steps = r.steps[1:]
	r.mu.Unlock()
	return s.msg, s.err
}

func (r *scriptedReader) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func userMsg(t *testing.T, eventID string, evt events.UserCreated) kafka.Message {
	t.Helper()
	payload, err := evt.Encode()
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	return kafka.Message{
		Topic: events.TopicUserCreated,
		Key:   evt.Key(),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(events.TopicUserCreated)},
		},
	}
}

func runConsumer(t *testing.T, reader *scriptedReader, cache *replica.Cache) {
	t.Helper()
	runConsumerWith(t, reader, UserCreatedHandler(testLogger(), cache))
}

func runConsumerWith(t *testing.T, reader *scriptedReader, handler Handler) {
	t.Helper()

	c := NewWithReader(testLogger(), inbox.NewRecorder(), reader, handler)
	c.minBackoff = time.Millisecond
	c.maxBackoff = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	select {
	case <-reader.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the scripted messages")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop on cancellation")
	}
}

func TestRunAppliesEvents(t *testing.T) {
	cache := replica.NewCache()
	reader := newScriptedReader(
		step{msg: userMsg(t, "evt-1", events.UserCreated{ID: 3, Name: "Carol", Email: "carol@mail.com"})},
	)

	runConsumer(t, reader, cache)

	u, ok := cache.Get(3)
	if !ok {
		t.Fatal("event was not applied to the cache")
	}
	if u.Name != "Carol" || u.Email != "carol@mail.com" {
		t.Fatalf("unexpected cached user: %+v", u)
	}
}

func TestRunSkipsMalformedAndContinues(t *testing.T) {
	cache := replica.NewCache()
	reader := newScriptedReader(
		step{msg: kafka.Message{
			Topic: events.TopicUserCreated,
			Value: []byte("this is not json"),
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte("evt-bad")},
			},
		}},
		step{msg: userMsg(t, "evt-2", events.UserCreated{ID: 4, Name: "Dave", Email: "dave@mail.com"})},
	)

	runConsumer(t, reader, cache)

	if _, ok := cache.Get(4); !ok {
		t.Fatal("valid message after a malformed one was not applied")
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 cached user, got %d", cache.Len())
	}
}

func TestRunDeduplicatesByEventID(t *testing.T) {
	cache := replica.NewCache()
	evt := events.UserCreated{ID: 5, Name: "Erin", Email: "erin@mail.com"}
	reader := newScriptedReader(
		step{msg: userMsg(t, "evt-3", evt)},
		step{msg: userMsg(t, "evt-3", evt)},
	)

	runConsumer(t, reader, cache)

	if cache.Applied() != 1 {
		t.Fatalf("expected exactly one apply, got %d", cache.Applied())
	}
}

func TestRunHandlerFailureLeavesEventRetryable(t *testing.T) {
	cache := replica.NewCache()
	evt := events.UserCreated{ID: 7, Name: "Grace", Email: "grace@mail.com"}
	reader := newScriptedReader(
		step{msg: userMsg(t, "evt-5", evt)},
		step{msg: userMsg(t, "evt-5", evt)},
	)

	// First delivery fails inside the handler; the redelivery must not be
	// treated as a duplicate.
	failed := false
	apply := UserCreatedHandler(testLogger(), cache)
	runConsumerWith(t, reader, func(ctx context.Context, msg kafka.Message) error {
		if !failed {
			failed = true
			return errors.New("transient apply failure")
		}
		return apply(ctx, msg)
	})

	if _, ok := cache.Get(7); !ok {
		t.Fatal("redelivery after a handler failure was not applied")
	}
}

func TestRunWithoutBrokersReturns(t *testing.T) {
	cache := replica.NewCache()
	c := New(testLogger(), inbox.NewRecorder(), Config{}, UserCreatedHandler(testLogger(), cache))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer with no brokers configured must return instead of panicking")
	}
}

func TestRunRecoversFromReadErrors(t *testing.T) {
	cache := replica.NewCache()
	reader := newScriptedReader(
		step{err: errors.New("broker connection lost")},
		step{err: errors.New("broker connection lost")},
		step{msg: userMsg(t, "evt-4", events.UserCreated{ID: 6, Name: "Frank", Email: "frank@mail.com"})},
	)

	runConsumer(t, reader, cache)

	if _, ok := cache.Get(6); !ok {
		t.Fatal("consumer did not resume after transient read errors")
	}
}
