package mail

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/events"
)

// Message is the data every template renders from.
type Message struct {
	Name   string
	Date   time.Time
	Time   string
	Reason string
}

// displayDate matches the short US date customers see in the booking UI.
const displayDate = "1/2/2006"

type tmpl struct {
	subject string
	body    *template.Template
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format(displayDate) },
}

var templates = map[events.Kind]tmpl{
	events.KindBooked: {
		subject: "Appointment Booking Confirmation",
		body: template.Must(template.New("booked").Funcs(funcs).Parse(`Dear {{.Name}},

Your appointment has been booked successfully!

Details:
- Date: {{date .Date}}
- Time: {{.Time}}
- Reason: {{.Reason}}

Your appointment is pending approval. We'll notify you once it's confirmed.

Best regards,
Appointment Booking Team`)),
	},
	events.KindApproved: {
		subject: "Appointment Approval Notification",
		body: template.Must(template.New("approved").Funcs(funcs).Parse(`Dear {{.Name}},

Your appointment on {{date .Date}} at {{.Time}} has been approved!

Reason: {{.Reason}}

We look forward to seeing you.

Best regards,
Appointment Booking Team`)),
	},
	events.KindDenied: {
		subject: "Appointment Status Update",
		body: template.Must(template.New("denied").Funcs(funcs).Parse(`Dear {{.Name}},

Your appointment on {{date .Date}} at {{.Time}} has been denied.

Reason: {{.Reason}}

Please book another slot if needed.

Best regards,
Appointment Booking Team`)),
	},
	events.KindCancelled: {
		subject: "Appointment Cancellation Notification",
		body: template.Must(template.New("cancelled").Funcs(funcs).Parse(`Dear {{.Name}},

Your appointment on {{date .Date}} at {{.Time}} has been canceled.

Reason: {{.Reason}}

Please book another slot if needed.

Best regards,
Appointment Booking Team`)),
	},
}

// Render returns the subject and plain-text body for kind.
func Render(kind events.Kind, msg Message) (string, string, error) {
	t, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("no mail template for %q", kind)
	}
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, msg); err != nil {
		return "", "", err
	}
	return t.subject, buf.String(), nil
}

// FromEvent converts a lifecycle event into template data.
func FromEvent(ev events.AppointmentEvent) (Message, error) {
	date, err := time.Parse(events.DateLayout, ev.Date)
	if err != nil {
		return Message{}, err
	}
	return Message{Name: ev.Name, Date: date, Time: ev.Time, Reason: ev.Reason}, nil
}
