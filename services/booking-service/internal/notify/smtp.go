package notify

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/libs/events"
	"github.com/md-rashed-zaman/slotbook/libs/mail"
)

// MailSender renders the lifecycle templates and mails the customer directly.
type MailSender struct {
	Mailer mail.Sender
}

func (s MailSender) Send(ctx context.Context, ev events.AppointmentEvent) error {
	msg, err := mail.FromEvent(ev)
	if err != nil {
		return err
	}
	subject, body, err := mail.Render(ev.Kind, msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Mailer.Send(ev.Email, subject, body)
}
