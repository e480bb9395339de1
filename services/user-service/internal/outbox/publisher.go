package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/avdupont/shopmesh/libs/kafkax"
	otelx "github.com/avdupont/shopmesh/libs/otel"
	"github.com/segmentio/kafka-go"
)

// Writer is the slice of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher drains the outbox queue into Kafka. A failed batch is requeued
// and retried after a bounded exponential backoff, which gives at-least-once
// delivery for as long as the process lives.
type Publisher struct {
	queue      *Queue
	writer     Writer
	logger     *slog.Logger
	pollEvery  time.Duration
	batchSize  int
	maxBackoff time.Duration

	backoff     time.Duration
	nextAttempt time.Time
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(queue *Queue, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	var writer Writer
	if brokers := kafkax.SplitBrokers(cfg.Brokers); len(brokers) > 0 {
		writer = kafka.NewWriter(kafka.WriterConfig{
			Brokers:      brokers,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 5 * time.Second,
		})
	}
	return newPublisher(queue, writer, logger, cfg)
}

func newPublisher(queue *Queue, writer Writer, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		queue:      queue,
		writer:     writer,
		logger:     logger,
		pollEvery:  cfg.PollEvery,
		batchSize:  cfg.BatchSize,
		maxBackoff: 30 * time.Second,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}
	defer p.writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Now().Before(p.nextAttempt) {
				continue
			}
			if err := p.publishBatch(ctx); err != nil {
				p.failure()
				p.logger.Error("outbox publish failed", "err", err, "pending", p.queue.Len(), "retry_in", p.backoff)
			} else {
				p.success()
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context) error {
	batch := p.queue.Fetch(p.batchSize)
	if len(batch) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(batch))
	for _, evt := range batch {
		msgCtx := otelx.ContextWithTraceContext(ctx, evt.Traceparent, evt.Tracestate)
		msg := kafka.Message{
			Topic: evt.EventType,
			Key:   evt.Key,
			Value: evt.Payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(evt.EventID)},
				{Key: "event_type", Value: []byte(evt.EventType)},
			},
		}
		msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.queue.Requeue(batch)
		return err
	}
	p.logger.Debug("outbox batch published", "events", len(batch))
	return nil
}

func (p *Publisher) failure() {
	if p.backoff <= 0 {
		p.backoff = p.pollEvery
	} else {
		p.backoff *= 2
	}
	if p.backoff > p.maxBackoff {
		p.backoff = p.maxBackoff
	}
	p.nextAttempt = time.Now().Add(p.backoff)
}

func (p *Publisher) success() {
	p.backoff = 0
	p.nextAttempt = time.Time{}
}
