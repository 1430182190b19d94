package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/amqpx"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PayloadHandler handles a raw message body published under eventType.
type PayloadHandler func(ctx context.Context, eventType string, body []byte) error

type queue interface {
	Consume(ctx context.Context, prefetch int, fn func(context.Context, amqpx.Delivery) error) error
}

// QueueConsumer drains a RabbitMQ queue with the same inbox dedupe as the Kafka consumer.
type QueueConsumer struct {
	queue    queue
	logger   *slog.Logger
	inbox    Inbox
	handler  PayloadHandler
	prefetch int
	backoff  time.Duration
}

func NewQueueConsumer(logger *slog.Logger, inbox Inbox, q queue, prefetch int, handler PayloadHandler) *QueueConsumer {
	return &QueueConsumer{queue: q, logger: logger, inbox: inbox, handler: handler, prefetch: prefetch, backoff: 2 * time.Second}
}

func (c *QueueConsumer) Run(ctx context.Context) {
	for {
		if err := c.queue.Consume(ctx, c.prefetch, c.process); err != nil {
			c.logger.Error("amqp consume error", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
}

func (c *QueueConsumer) process(ctx context.Context, d amqpx.Delivery) error {
	ctxMsg := otelx.ContextWithTraceHeaders(ctx, d.Headers)
	ctxSpan, span := otelx.Tracer("amqp").Start(ctxMsg, "amqp.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.message.type", d.Type),
		),
	)
	defer span.End()

	eventID := d.Headers["event_id"]
	if eventID != "" {
		ok, err := c.inbox.Record(ctxSpan, eventID, d.Type)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			return err
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", eventID, "event_type", d.Type)
			return nil
		}
	}
	if err := c.handler(ctxSpan, d.Type, d.Body); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", eventID)
		span.RecordError(err)
		return err
	}
	return nil
}
