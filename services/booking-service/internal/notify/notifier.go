package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/libs/events"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Notifier is the outbound port the booking and workflow services call after a state change.
// Implementations must not be relied on for correctness: a failed notification never undoes
// the change that triggered it.
type Notifier interface {
	NotifyBooked(ctx context.Context, appt model.Appointment) error
	NotifyApproved(ctx context.Context, appt model.Appointment) error
	NotifyDenied(ctx context.Context, appt model.Appointment) error
	NotifyCancelled(ctx context.Context, appt model.Appointment) error
}

// Sender delivers one lifecycle event over a concrete channel.
type Sender interface {
	Send(ctx context.Context, ev events.AppointmentEvent) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, ev events.AppointmentEvent) error

func (f SenderFunc) Send(ctx context.Context, ev events.AppointmentEvent) error { return f(ctx, ev) }

// Sync calls the sender inline. It is what the Dispatcher runs on its workers, and is usable
// directly in tests.
type Sync struct {
	Sender Sender
	now    func() time.Time
}

func NewSync(sender Sender) *Sync {
	return &Sync{Sender: sender, now: time.Now}
}

func (n *Sync) NotifyBooked(ctx context.Context, appt model.Appointment) error {
	return n.send(ctx, events.KindBooked, appt)
}

func (n *Sync) NotifyApproved(ctx context.Context, appt model.Appointment) error {
	return n.send(ctx, events.KindApproved, appt)
}

func (n *Sync) NotifyDenied(ctx context.Context, appt model.Appointment) error {
	return n.send(ctx, events.KindDenied, appt)
}

func (n *Sync) NotifyCancelled(ctx context.Context, appt model.Appointment) error {
	return n.send(ctx, events.KindCancelled, appt)
}

func (n *Sync) send(ctx context.Context, kind events.Kind, appt model.Appointment) error {
	if err := n.Sender.Send(ctx, NewEvent(kind, appt, n.now())); err != nil {
		return fmt.Errorf("%w: %s %s: %v", model.ErrNotificationFailed, kind, appt.ID, err)
	}
	return nil
}

// NewEvent snapshots appt into a lifecycle event with a fresh id.
func NewEvent(kind events.Kind, appt model.Appointment, at time.Time) events.AppointmentEvent {
	return events.AppointmentEvent{
		EventID:       uuid.NewString(),
		Kind:          kind,
		AppointmentID: appt.ID,
		SlotID:        appt.SlotID,
		Name:          appt.Name,
		Email:         appt.Email,
		Reason:        appt.Reason,
		Date:          appt.Date.Format(events.DateLayout),
		Time:          appt.Time,
		Status:        string(appt.Status),
		OccurredAt:    at.UTC(),
	}
}

// Nop drops every notification.
type Nop struct{}

func (Nop) NotifyBooked(context.Context, model.Appointment) error    { return nil }
func (Nop) NotifyApproved(context.Context, model.Appointment) error  { return nil }
func (Nop) NotifyDenied(context.Context, model.Appointment) error    { return nil }
func (Nop) NotifyCancelled(context.Context, model.Appointment) error { return nil }
