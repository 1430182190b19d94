package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestTryReserveExactlyOneWinner(t *testing.T) {
	store := NewMemorySlotStore(model.Slot{ID: "slot-1", Date: day(1), Time: "10:00 AM"})

	var wins, unavailable atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.TryReserve(context.Background(), "slot-1")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, model.ErrSlotUnavailable):
				unavailable.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 || unavailable.Load() != 49 {
		t.Fatalf("expected 1 winner and 49 losers, got %d/%d", wins.Load(), unavailable.Load())
	}
}

func TestSlotLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySlotStore(
		model.Slot{ID: "slot-2", Date: day(2), Time: "10:00 AM"},
		model.Slot{ID: "slot-1", Date: day(1), Time: "10:00 AM"},
	)

	if _, err := store.TryReserve(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	slot, err := store.TryReserve(ctx, "slot-1")
	if err != nil || !slot.IsBooked || slot.BookedAt == nil {
		t.Fatalf("TryReserve: %+v %v", slot, err)
	}

	avail, _ := store.ListAvailable(ctx)
	if len(avail) != 1 || avail[0].ID != "slot-2" {
		t.Fatalf("unexpected available slots: %+v", avail)
	}

	for i := 0; i < 2; i++ {
		if err := store.Release(ctx, "slot-1"); err != nil {
			t.Fatalf("Release #%d: %v", i, err)
		}
	}
	if err := store.Release(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	avail, _ = store.ListAvailable(ctx)
	if len(avail) != 2 || avail[0].ID != "slot-1" || avail[1].ID != "slot-2" {
		t.Fatalf("expected slots ordered by date, got %+v", avail)
	}
}

func TestReleaseIfBookedBefore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySlotStore(model.Slot{ID: "slot-1", Date: day(1), Time: "10:00 AM"})
	booked := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return booked }

	if _, err := store.TryReserve(ctx, "slot-1"); err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	if released, _ := store.ReleaseIfBookedBefore(ctx, "slot-1", booked); released {
		t.Fatal("slot booked at the cutoff must not be released")
	}
	stale, _ := store.ListBooked(ctx, booked.Add(time.Minute))
	if len(stale) != 1 {
		t.Fatalf("expected one stale slot, got %d", len(stale))
	}
	released, err := store.ReleaseIfBookedBefore(ctx, "slot-1", booked.Add(time.Minute))
	if err != nil || !released {
		t.Fatalf("expected release, got %v %v", released, err)
	}
}

func TestAddKeepsExistingSlot(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySlotStore()
	created, err := store.Add(ctx, model.Slot{ID: "slot-1", Date: day(1), Time: "10:00 AM"})
	if err != nil || !created {
		t.Fatalf("Add: %v %v", created, err)
	}
	if _, err := store.TryReserve(ctx, "slot-1"); err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	created, _ = store.Add(ctx, model.Slot{ID: "slot-1", Date: day(5), Time: "11:00 AM"})
	if created {
		t.Fatal("expected existing slot to be kept")
	}
	slot, _ := store.Get(ctx, "slot-1")
	if !slot.IsBooked || !slot.Date.Equal(day(1)) {
		t.Fatalf("existing slot was modified: %+v", slot)
	}
}

func TestAppointmentStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAppointmentStore()
	base := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"b", "a", "c"} {
		status := model.StatusPending
		if id == "c" {
			status = model.StatusDenied
		}
		err := store.Create(ctx, model.Appointment{ID: id, SlotID: "slot-" + id, Status: status, CreatedAt: base.Add(time.Duration(i) * time.Second)})
		if err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if err := store.Create(ctx, model.Appointment{ID: "a"}); !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	all, _ := store.List(ctx, "")
	if len(all) != 3 || all[0].ID != "b" || all[1].ID != "a" {
		t.Fatalf("expected creation order, got %+v", all)
	}
	pending, _ := store.List(ctx, model.StatusPending)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	if _, err := store.SwapStatus(ctx, "a", model.StatusApproved, model.StatusDenied); !errors.Is(err, model.ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
	appt, err := store.SwapStatus(ctx, "a", model.StatusPending, model.StatusApproved)
	if err != nil || appt.Status != model.StatusApproved {
		t.Fatalf("SwapStatus: %+v %v", appt, err)
	}
	if active, _ := store.HasActiveForSlot(ctx, "slot-c"); active {
		t.Fatal("denied appointment must not hold its slot")
	}
	if active, _ := store.HasActiveForSlot(ctx, "slot-a"); !active {
		t.Fatal("approved appointment must hold its slot")
	}

	deleted, err := store.Delete(ctx, "a")
	if err != nil || deleted.ID != "a" {
		t.Fatalf("Delete: %+v %v", deleted, err)
	}
	if _, err := store.Find(ctx, "a"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, "a", model.StatusDenied); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppointmentStoreOneActivePerSlot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAppointmentStore()

	if err := store.Create(ctx, model.Appointment{ID: "a", SlotID: "slot-1", Status: model.StatusDenied}); err != nil {
		t.Fatalf("Create denied: %v", err)
	}
	if err := store.Create(ctx, model.Appointment{ID: "b", SlotID: "slot-1", Status: model.StatusPending}); err != nil {
		t.Fatalf("Create pending next to denied: %v", err)
	}
	if err := store.Create(ctx, model.Appointment{ID: "c", SlotID: "slot-1", Status: model.StatusPending}); !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for second active appointment, got %v", err)
	}
}
