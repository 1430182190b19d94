package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	availableSlotsKey = "slots:available"
	generationKey     = availableSlotsKey + ":gen"
)

// CachedSlotStore caches ListAvailable in Redis under a generation number that every write
// bumps. A fill computed before a write lands under a generation nobody reads again. Redis
// failures degrade to the underlying store.
type CachedSlotStore struct {
	SlotStore
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedSlotStore(next SlotStore, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedSlotStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSlotStore{SlotStore: next, rdb: rdb, ttl: ttl, logger: logger}
}

type cachedSlot struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
	Time string    `json:"time"`
}

func (s *CachedSlotStore) ListAvailable(ctx context.Context) ([]model.Slot, error) {
	gen, err := s.rdb.Get(ctx, generationKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		gen = "0"
	case err != nil:
		s.logger.Warn("slot cache generation read failed", "err", err)
		return s.SlotStore.ListAvailable(ctx)
	}
	key := cacheKey(gen)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []cachedSlot
		if err := json.Unmarshal(raw, &cached); err == nil {
			slots := make([]model.Slot, 0, len(cached))
			for _, c := range cached {
				slots = append(slots, model.Slot{ID: c.ID, Date: c.Date, Time: c.Time})
			}
			return slots, nil
		}
		s.logger.Warn("discarding unreadable slot cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("slot cache read failed", "err", err)
	}

	slots, err := s.SlotStore.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	cached := make([]cachedSlot, 0, len(slots))
	for _, slot := range slots {
		cached = append(cached, cachedSlot{ID: slot.ID, Date: slot.Date, Time: slot.Time})
	}
	if payload, err := json.Marshal(cached); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.logger.Warn("slot cache write failed", "err", err)
		}
	}
	return slots, nil
}

func cacheKey(gen string) string { return availableSlotsKey + ":" + gen }

func (s *CachedSlotStore) TryReserve(ctx context.Context, slotID string) (model.Slot, error) {
	slot, err := s.SlotStore.TryReserve(ctx, slotID)
	if err == nil {
		s.invalidate(ctx)
	}
	return slot, err
}

func (s *CachedSlotStore) Release(ctx context.Context, slotID string) error {
	err := s.SlotStore.Release(ctx, slotID)
	if err == nil {
		s.invalidate(ctx)
	}
	return err
}

func (s *CachedSlotStore) Add(ctx context.Context, slot model.Slot) (bool, error) {
	created, err := s.SlotStore.Add(ctx, slot)
	if created {
		s.invalidate(ctx)
	}
	return created, err
}

func (s *CachedSlotStore) ReleaseIfBookedBefore(ctx context.Context, slotID string, cutoff time.Time) (bool, error) {
	released, err := s.SlotStore.ReleaseIfBookedBefore(ctx, slotID, cutoff)
	if released {
		s.invalidate(ctx)
	}
	return released, err
}

// invalidate runs after the write is committed, so any reader that saw the old state also
// saw the old generation.
func (s *CachedSlotStore) invalidate(ctx context.Context) {
	if err := s.rdb.Incr(context.WithoutCancel(ctx), generationKey).Err(); err != nil {
		s.logger.Warn("slot cache invalidation failed", "err", err)
	}
}
