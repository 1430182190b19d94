package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/events"
	"github.com/md-rashed-zaman/slotbook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeRecorder struct {
	rows []storage.Notification
	err  error
}

func (r *fakeRecorder) Insert(_ context.Context, n storage.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, n)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(kind events.Kind, email string) events.AppointmentEvent {
	return events.AppointmentEvent{
		EventID:       "ev-1",
		Kind:          kind,
		AppointmentID: "appt-1",
		SlotID:        "slot-1",
		Name:          "Ada",
		Email:         email,
		Reason:        "checkup",
		Date:          "2026-03-02",
		Time:          "10:00 AM",
		Status:        "pending",
		OccurredAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func message(t *testing.T, ev events.AppointmentEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Topic: events.Topic(ev.Kind), Value: b}
}

func TestHandleSendsAndRecords(t *testing.T) {
	mailer := &fakeMailer{}
	rec := &fakeRecorder{}
	h := NewHandler(mailer, rec, testLogger(), "")

	if err := h.Handle(context.Background(), message(t, event(events.KindApproved, "ada@example.com"))); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.sent))
	}
	got := mailer.sent[0]
	if got.to != "ada@example.com" || got.subject != "Appointment Approval Notification" {
		t.Fatalf("unexpected mail: %+v", got)
	}
	if !strings.Contains(got.body, "Ada") || !strings.Contains(got.body, "3/2/2026") {
		t.Fatalf("body missing name or date: %q", got.body)
	}
	if len(rec.rows) != 1 || rec.rows[0].Status != storage.StatusSent || rec.rows[0].Kind != "approved" {
		t.Fatalf("unexpected record: %+v", rec.rows)
	}
}

func TestHandleRecordsDeliveryFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	rec := &fakeRecorder{}
	h := NewHandler(mailer, rec, testLogger(), "")

	if err := h.Handle(context.Background(), message(t, event(events.KindBooked, "ada@example.com"))); err != nil {
		t.Fatalf("delivery failure must not fail the message: %v", err)
	}
	if len(rec.rows) != 1 || rec.rows[0].Status != storage.StatusFailed || rec.rows[0].ErrorReason != "smtp down" {
		t.Fatalf("unexpected record: %+v", rec.rows)
	}
}

func TestHandleSimulatedFailureSuffix(t *testing.T) {
	mailer := &fakeMailer{}
	rec := &fakeRecorder{}
	h := NewHandler(mailer, rec, testLogger(), "@fail.test")

	if err := h.Handle(context.Background(), message(t, event(events.KindDenied, "x@fail.test"))); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatal("expected no mail for simulated failure")
	}
	if rec.rows[0].Status != storage.StatusFailed {
		t.Fatalf("expected failed status, got %q", rec.rows[0].Status)
	}
}

func TestHandleDropsMalformedPayload(t *testing.T) {
	rec := &fakeRecorder{}
	h := NewHandler(&fakeMailer{}, rec, testLogger(), "")

	if err := h.Handle(context.Background(), kafka.Message{Topic: events.Topic(events.KindBooked), Value: []byte("{")}); err != nil {
		t.Fatalf("malformed payload should be dropped, got %v", err)
	}
	bad := event(events.KindBooked, "")
	if err := h.Handle(context.Background(), message(t, bad)); err != nil {
		t.Fatalf("invalid event should be dropped, got %v", err)
	}
	if len(rec.rows) != 0 {
		t.Fatalf("expected nothing recorded, got %+v", rec.rows)
	}
}

func TestHandleTakesKindFromTopic(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewHandler(mailer, &fakeRecorder{}, testLogger(), "")

	ev := event("", "ada@example.com")
	b, _ := json.Marshal(ev)
	msg := kafka.Message{Topic: events.Topic(events.KindCancelled), Value: b}
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].subject != "Appointment Cancellation Notification" {
		t.Fatalf("unexpected mail: %+v", mailer.sent)
	}
}

func TestHandleReturnsRecorderError(t *testing.T) {
	h := NewHandler(&fakeMailer{}, &fakeRecorder{err: errors.New("db down")}, testLogger(), "")
	if err := h.Handle(context.Background(), message(t, event(events.KindBooked, "ada@example.com"))); err == nil {
		t.Fatal("expected recorder error")
	}
}
