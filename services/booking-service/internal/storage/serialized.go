package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/locker"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Serialized runs every state change of a slot under a per-slot lock, for backends whose
// conditional update is not enough on its own (or to keep replicas from racing on the cache).
type Serialized struct {
	SlotStore
	locks locker.Locker
}

func NewSerialized(next SlotStore, locks locker.Locker) *Serialized {
	return &Serialized{SlotStore: next, locks: locks}
}

func (s *Serialized) TryReserve(ctx context.Context, slotID string) (model.Slot, error) {
	unlock, err := s.locks.Lock(ctx, "slot:"+slotID)
	if err != nil {
		return model.Slot{}, err
	}
	defer unlock()
	return s.SlotStore.TryReserve(ctx, slotID)
}

func (s *Serialized) Release(ctx context.Context, slotID string) error {
	unlock, err := s.locks.Lock(ctx, "slot:"+slotID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.SlotStore.Release(ctx, slotID)
}

func (s *Serialized) ReleaseIfBookedBefore(ctx context.Context, slotID string, cutoff time.Time) (bool, error) {
	unlock, err := s.locks.Lock(ctx, "slot:"+slotID)
	if err != nil {
		return false, err
	}
	defer unlock()
	return s.SlotStore.ReleaseIfBookedBefore(ctx, slotID, cutoff)
}
