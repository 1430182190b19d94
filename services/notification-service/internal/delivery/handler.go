// Package delivery turns appointment lifecycle events into customer emails.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/events"
	"github.com/md-rashed-zaman/slotbook/libs/mail"
	"github.com/md-rashed-zaman/slotbook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

var errSimulated = errors.New("simulated failure")

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Handler struct {
	mailer   mail.Sender
	recorder Recorder
	logger   *slog.Logger
	// failSuffix simulates a delivery failure for matching recipients (local testing).
	failSuffix string
}

func NewHandler(mailer mail.Sender, recorder Recorder, logger *slog.Logger, failSuffix string) *Handler {
	return &Handler{mailer: mailer, recorder: recorder, logger: logger, failSuffix: failSuffix}
}

// Handle processes one Kafka message.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	return h.HandlePayload(ctx, msg.Topic, msg.Value)
}

// HandlePayload decodes an event published under eventType (the topic name). Malformed
// payloads are logged and dropped; only a failure to record the outcome is returned.
func (h *Handler) HandlePayload(ctx context.Context, eventType string, body []byte) error {
	var ev events.AppointmentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.logger.Error("invalid event payload", "err", err, "event_type", eventType)
		return nil
	}
	if kind, ok := events.KindFromTopic(eventType); ok && ev.Kind == "" {
		ev.Kind = kind
	}
	if err := ev.Validate(); err != nil {
		h.logger.Error("invalid event", "err", err, "event_type", eventType)
		return nil
	}
	return h.Deliver(ctx, ev)
}

// Deliver renders and sends the email for ev and records the outcome.
func (h *Handler) Deliver(ctx context.Context, ev events.AppointmentEvent) error {
	n := storage.Notification{
		EventID:       ev.EventID,
		Kind:          string(ev.Kind),
		AppointmentID: ev.AppointmentID,
		Recipient:     ev.Email,
		Status:        storage.StatusSent,
	}

	subject, err := h.send(ev)
	n.Subject = subject
	if err != nil {
		n.Status = storage.StatusFailed
		n.ErrorReason = err.Error()
		h.logger.ErrorContext(ctx, "email send failed", "err", err, "appointment_id", ev.AppointmentID, "kind", ev.Kind)
	}

	if err := h.recorder.Insert(ctx, n); err != nil {
		h.logger.ErrorContext(ctx, "failed to persist notification", "err", err)
		return err
	}
	h.logger.InfoContext(ctx, "notification processed", "appointment_id", ev.AppointmentID, "kind", ev.Kind, "status", n.Status)
	return nil
}

func (h *Handler) send(ev events.AppointmentEvent) (string, error) {
	msg, err := mail.FromEvent(ev)
	if err != nil {
		return "", err
	}
	subject, body, err := mail.Render(ev.Kind, msg)
	if err != nil {
		return "", err
	}
	if h.failSuffix != "" && strings.HasSuffix(ev.Email, h.failSuffix) {
		return subject, errSimulated
	}
	return subject, h.mailer.Send(ev.Email, subject, body)
}
