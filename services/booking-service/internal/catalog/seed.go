package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

type SeedConfig struct {
	Days int
	Time string
}

// Seed adds slot-1..slot-N, one per day starting at from's date. Slots that already exist are
// kept as they are. It returns how many were created.
func Seed(ctx context.Context, slots storage.SlotStore, from time.Time, cfg SeedConfig) (int, error) {
	if cfg.Days <= 0 {
		cfg.Days = 7
	}
	if cfg.Time == "" {
		cfg.Time = "10:00 AM"
	}
	start := model.DateOnly(from)
	created := 0
	for i := 0; i < cfg.Days; i++ {
		slot := model.Slot{
			ID:   fmt.Sprintf("slot-%d", i+1),
			Date: start.AddDate(0, 0, i),
			Time: cfg.Time,
		}
		ok, err := slots.Add(ctx, slot)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", slot.ID, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}
