package notify

import (
	"context"
	"encoding/json"

	"github.com/md-rashed-zaman/slotbook/libs/events"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSender publishes lifecycle events to booking.appointment.<kind>.v1, keyed by
// appointment id. The key only pins an appointment to one partition within a topic; events
// of different kinds travel on different topics and carry no relative order.
type KafkaSender struct {
	writer messageWriter
}

func NewKafkaSender(w messageWriter) *KafkaSender {
	return &KafkaSender{writer: w}
}

func (s *KafkaSender) Send(ctx context.Context, ev events.AppointmentEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	topic := events.Topic(ev.Kind)
	headers := kafkax.EventMeta{EventID: ev.EventID, EventType: topic}.Headers()
	return s.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(ev.AppointmentID),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, headers),
	})
}
