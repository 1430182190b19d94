package events

import "testing"

func TestTopicRoundTrip(t *testing.T) {
	for _, k := range Kinds {
		got, ok := KindFromTopic(Topic(k))
		if !ok || got != k {
			t.Fatalf("KindFromTopic(%q) = %q, %v", Topic(k), got, ok)
		}
	}
	if _, ok := KindFromTopic("booking.appointment.rescheduled.v1"); ok {
		t.Fatal("unexpected kind for unknown topic")
	}
	if Topic(KindBooked) != "booking.appointment.booked.v1" {
		t.Fatalf("unexpected topic %q", Topic(KindBooked))
	}
}

func TestValidate(t *testing.T) {
	ev := AppointmentEvent{EventID: "e1", Kind: KindApproved, AppointmentID: "a1", Email: "a@b.c", Date: "2025-03-01"}
	if err := ev.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	ev.Date = "03/01/2025"
	if err := ev.Validate(); err == nil {
		t.Fatal("expected invalid date error")
	}
	ev.Date = "2025-03-01"
	ev.Kind = "rescheduled"
	if err := ev.Validate(); err == nil {
		t.Fatal("expected unknown kind error")
	}
}
