package notify

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/slotbook/libs/events"
)

// LogSender records notifications in the service log instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, ev events.AppointmentEvent) error {
	s.Logger.InfoContext(ctx, "notification",
		"kind", ev.Kind,
		"event_id", ev.EventID,
		"appointment_id", ev.AppointmentID,
		"email", ev.Email,
		"date", ev.Date,
		"time", ev.Time,
	)
	return nil
}
