package notify

import (
	"context"
	"encoding/json"

	"github.com/md-rashed-zaman/slotbook/libs/events"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
)

type jsonPublisher interface {
	PublishJSON(ctx context.Context, messageType string, body []byte, headers map[string]string) error
}

// AMQPSender puts lifecycle events on a RabbitMQ queue; the message type is the topic name.
type AMQPSender struct {
	pub jsonPublisher
}

func NewAMQPSender(pub jsonPublisher) *AMQPSender {
	return &AMQPSender{pub: pub}
}

func (s *AMQPSender) Send(ctx context.Context, ev events.AppointmentEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	headers := otelx.TraceHeaders(ctx)
	headers["event_id"] = ev.EventID
	return s.pub.PublishJSON(ctx, events.Topic(ev.Kind), payload, headers)
}
