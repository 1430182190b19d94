package storage

import (
	"context"
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// SlotStore owns the slot catalog. TryReserve must be a single conditional write: exactly one
// of any number of concurrent callers for the same free slot succeeds.
type SlotStore interface {
	ListAvailable(ctx context.Context) ([]model.Slot, error)
	TryReserve(ctx context.Context, slotID string) (model.Slot, error)
	// Release is idempotent; it fails only when the slot does not exist.
	Release(ctx context.Context, slotID string) error

	Get(ctx context.Context, slotID string) (model.Slot, error)
	// Add inserts the slot unless one with the same id exists, reporting whether it did.
	Add(ctx context.Context, slot model.Slot) (bool, error)
	ListBooked(ctx context.Context, bookedBefore time.Time) ([]model.Slot, error)
	// ReleaseIfBookedBefore frees the slot only if it is still booked and was booked before
	// cutoff.
	ReleaseIfBookedBefore(ctx context.Context, slotID string, cutoff time.Time) (bool, error)
}

type AppointmentStore interface {
	Create(ctx context.Context, appt model.Appointment) error
	Find(ctx context.Context, id string) (model.Appointment, error)
	// List returns appointments in creation order; an empty filter matches every status.
	List(ctx context.Context, filter model.Status) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error)
	// SwapStatus writes `to` only while the stored status is still `from`.
	SwapStatus(ctx context.Context, id string, from, to model.Status) (model.Appointment, error)
	Delete(ctx context.Context, id string) (model.Appointment, error)
	HasActiveForSlot(ctx context.Context, slotID string) (bool, error)
}

func sortSlots(slots []model.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
}

func sortAppointments(appts []model.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
