package storage

import (
	"context"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type MemorySlotStore struct {
	mu    sync.Mutex
	slots map[string]model.Slot
	now   func() time.Time
}

func NewMemorySlotStore(slots ...model.Slot) *MemorySlotStore {
	s := &MemorySlotStore{slots: map[string]model.Slot{}, now: time.Now}
	for _, slot := range slots {
		s.slots[slot.ID] = slot
	}
	return s
}

func (s *MemorySlotStore) ListAvailable(_ context.Context) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		if !slot.IsBooked {
			out = append(out, slot)
		}
	}
	sortSlots(out)
	return out, nil
}

func (s *MemorySlotStore) TryReserve(_ context.Context, slotID string) (model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return model.Slot{}, model.ErrNotFound
	}
	if slot.IsBooked {
		return model.Slot{}, model.ErrSlotUnavailable
	}
	now := s.now().UTC()
	slot.IsBooked = true
	slot.BookedAt = &now
	s.slots[slotID] = slot
	return slot, nil
}

func (s *MemorySlotStore) Release(_ context.Context, slotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return model.ErrNotFound
	}
	slot.IsBooked = false
	slot.BookedAt = nil
	s.slots[slotID] = slot
	return nil
}

func (s *MemorySlotStore) Get(_ context.Context, slotID string) (model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return model.Slot{}, model.ErrNotFound
	}
	return slot, nil
}

func (s *MemorySlotStore) Add(_ context.Context, slot model.Slot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[slot.ID]; ok {
		return false, nil
	}
	s.slots[slot.ID] = slot
	return true, nil
}

func (s *MemorySlotStore) ListBooked(_ context.Context, bookedBefore time.Time) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Slot
	for _, slot := range s.slots {
		if bookedBeforeCutoff(slot, bookedBefore) {
			out = append(out, slot)
		}
	}
	sortSlots(out)
	return out, nil
}

func (s *MemorySlotStore) ReleaseIfBookedBefore(_ context.Context, slotID string, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return false, model.ErrNotFound
	}
	if !bookedBeforeCutoff(slot, cutoff) {
		return false, nil
	}
	slot.IsBooked = false
	slot.BookedAt = nil
	s.slots[slotID] = slot
	return true, nil
}

func bookedBeforeCutoff(slot model.Slot, cutoff time.Time) bool {
	return slot.IsBooked && slot.BookedAt != nil && slot.BookedAt.Before(cutoff)
}

type MemoryAppointmentStore struct {
	mu    sync.Mutex
	appts map[string]model.Appointment
}

func NewMemoryAppointmentStore() *MemoryAppointmentStore {
	return &MemoryAppointmentStore{appts: map[string]model.Appointment{}}
}

func (s *MemoryAppointmentStore) Create(_ context.Context, appt model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[appt.ID]; ok {
		return model.ErrDuplicateID
	}
	if appt.Status.Active() {
		for _, other := range s.appts {
			if other.SlotID == appt.SlotID && other.Status.Active() {
				return model.ErrSlotUnavailable
			}
		}
	}
	s.appts[appt.ID] = appt
	return nil
}

func (s *MemoryAppointmentStore) Find(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	return appt, nil
}

func (s *MemoryAppointmentStore) List(_ context.Context, filter model.Status) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Appointment, 0, len(s.appts))
	for _, appt := range s.appts {
		if filter == "" || appt.Status == filter {
			out = append(out, appt)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (s *MemoryAppointmentStore) UpdateStatus(_ context.Context, id string, status model.Status) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	appt.Status = status
	s.appts[id] = appt
	return appt, nil
}

func (s *MemoryAppointmentStore) SwapStatus(_ context.Context, id string, from, to model.Status) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	if appt.Status != from {
		return model.Appointment{}, model.ErrStatusChanged
	}
	appt.Status = to
	s.appts[id] = appt
	return appt, nil
}

func (s *MemoryAppointmentStore) Delete(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	delete(s.appts, id)
	return appt, nil
}

func (s *MemoryAppointmentStore) HasActiveForSlot(_ context.Context, slotID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, appt := range s.appts {
		if appt.SlotID == slotID && appt.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}
