package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

func TestSweepReleasesOnlyOrphans(t *testing.T) {
	ctx := context.Background()
	old := time.Now().Add(-time.Hour).UTC()
	recent := time.Now().UTC()
	day := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

	slots := storage.NewMemorySlotStore(
		model.Slot{ID: "orphan", Date: day, Time: "10:00 AM", IsBooked: true, BookedAt: &old},
		model.Slot{ID: "held", Date: day, Time: "11:00 AM", IsBooked: true, BookedAt: &old},
		model.Slot{ID: "fresh", Date: day, Time: "12:00 PM", IsBooked: true, BookedAt: &recent},
		model.Slot{ID: "free", Date: day, Time: "01:00 PM"},
	)
	appts := storage.NewMemoryAppointmentStore()
	if err := appts.Create(ctx, model.Appointment{ID: "a1", SlotID: "held", Status: model.StatusApproved}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := appts.Create(ctx, model.Appointment{ID: "a2", SlotID: "orphan", Status: model.StatusDenied}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	w := NewWorker(slots, appts, slog.New(slog.NewTextHandler(io.Discard, nil)), WorkerConfig{Grace: 5 * time.Minute})
	released, err := w.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(released) != 1 || released[0] != "orphan" {
		t.Fatalf("expected only the orphan released, got %v", released)
	}
	for id, want := range map[string]bool{"orphan": false, "held": true, "fresh": true} {
		slot, _ := slots.Get(ctx, id)
		if slot.IsBooked != want {
			t.Fatalf("slot %s booked=%v, want %v", id, slot.IsBooked, want)
		}
	}
}
