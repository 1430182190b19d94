// Package events defines the appointment lifecycle messages shared by the booking and
// notification services.
package events

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindBooked    Kind = "booked"
	KindApproved  Kind = "approved"
	KindDenied    Kind = "denied"
	KindCancelled Kind = "cancelled"
)

var Kinds = []Kind{KindBooked, KindApproved, KindDenied, KindCancelled}

// Topic is the Kafka topic (and AMQP message type) for kind.
func Topic(kind Kind) string {
	return fmt.Sprintf("booking.appointment.%s.v1", kind)
}

// Topics lists every lifecycle topic.
func Topics() []string {
	out := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, Topic(k))
	}
	return out
}

// KindFromTopic reverses Topic.
func KindFromTopic(topic string) (Kind, bool) {
	for _, k := range Kinds {
		if Topic(k) == topic {
			return k, true
		}
	}
	return "", false
}

// DateLayout is the wire format of AppointmentEvent.Date.
const DateLayout = "2006-01-02"

type AppointmentEvent struct {
	EventID       string    `json:"event_id"`
	Kind          Kind      `json:"kind"`
	AppointmentID string    `json:"appointment_id"`
	SlotID        string    `json:"slot_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Reason        string    `json:"reason"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e AppointmentEvent) Validate() error {
	if _, ok := KindFromTopic(Topic(e.Kind)); !ok {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.AppointmentID == "" || e.Email == "" {
		return fmt.Errorf("event %s: appointment_id and email are required", e.EventID)
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return fmt.Errorf("event %s: invalid date %q", e.EventID, e.Date)
	}
	return nil
}
