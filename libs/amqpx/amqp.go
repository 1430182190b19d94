package amqpx

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel owns one connection and one channel with a durable queue declared on it.
type Channel struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

func Dial(url, queue string) (*Channel, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	if queue == "" {
		return nil, errors.New("amqp queue is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Channel{conn: conn, ch: ch, Queue: queue}, nil
}

// PublishJSON publishes a persistent message to the declared queue via the default exchange.
// headers travel as AMQP string headers.
func (c *Channel) PublishJSON(ctx context.Context, messageType string, body []byte, headers map[string]string) error {
	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}
	return c.ch.PublishWithContext(ctx, "", c.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         messageType,
		Headers:      table,
		Body:         body,
	})
}

func (c *Channel) Close() error {
	if c == nil {
		return nil
	}
	err := c.ch.Close()
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Channel) ReadyCheck() func(context.Context) error {
	return func(context.Context) error {
		if c == nil || c.conn == nil || c.conn.IsClosed() {
			return errors.New("amqp connection closed")
		}
		return nil
	}
}

// Delivery is one consumed message with its string headers.
type Delivery struct {
	Type    string
	Body    []byte
	Headers map[string]string
}

// Consume reads the queue until ctx is done or the channel closes. A delivery is acked when
// fn returns nil and requeued otherwise, so fn should only fail on transient errors.
func (c *Channel) Consume(ctx context.Context, prefetch int, fn func(context.Context, Delivery) error) error {
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return err
	}
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("amqp delivery channel closed")
			}
			headers := make(map[string]string, len(d.Headers))
			for k, v := range d.Headers {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
			if err := fn(ctx, Delivery{Type: d.Type, Body: d.Body, Headers: headers}); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
