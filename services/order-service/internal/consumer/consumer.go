package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/avdupont/shopmesh/libs/kafkax"
	"github.com/avdupont/shopmesh/services/order-service/internal/inbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the slice of kafka.Reader the loop needs.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer drives a consumer-group subscription and applies each message
// through the handler. Read failures are retried with bounded exponential
// backoff; a bad message never stops the loop. It exits only when the
// context is cancelled.
type Consumer struct {
	reader  Reader
	logger  *slog.Logger
	inbox   *inbox.Recorder
	handler Handler

	minBackoff time.Duration
	maxBackoff time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, recorder *inbox.Recorder, cfg Config, handler Handler) *Consumer {
	var reader Reader
	if brokers := kafkax.SplitBrokers(cfg.Brokers); len(brokers) > 0 {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			Dialer: &kafka.Dialer{
				Timeout:   10 * time.Second,
				DualStack: true,
			},
		})
	}
	return NewWithReader(logger, recorder, reader, handler)
}

func NewWithReader(logger *slog.Logger, recorder *inbox.Recorder, reader Reader, handler Handler) *Consumer {
	return &Consumer{
		reader:     reader,
		logger:     logger,
		inbox:      recorder,
		handler:    handler,
		minBackoff: 1 * time.Second,
		maxBackoff: 30 * time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	if c.reader == nil {
		c.logger.Warn("event consumer disabled (no kafka brokers configured)")
		return
	}
	defer c.reader.Close()

	backoff := c.minBackoff
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}
		backoff = c.minBackoff

		c.consume(ctx, msg)
	}
}

func (c *Consumer) consume(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if c.inbox.Seen(meta.EventID) {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return
	}
	// Recorded only after a successful apply so a redelivery can retry a
	// failed one.
	c.inbox.Record(meta.EventID)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
