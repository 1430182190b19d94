package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

func TestSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemorySlotStore()
	from := time.Date(2025, time.March, 30, 18, 30, 0, 0, time.UTC)

	n, err := Seed(ctx, slots, from, SeedConfig{Days: 3})
	if err != nil || n != 3 {
		t.Fatalf("Seed: %d %v", n, err)
	}
	avail, _ := slots.ListAvailable(ctx)
	if len(avail) != 3 || avail[0].ID != "slot-1" || avail[2].Date.Format("2006-01-02") != "2025-04-01" || avail[0].Time != "10:00 AM" {
		t.Fatalf("unexpected catalog %+v", avail)
	}

	if _, err := slots.TryReserve(ctx, "slot-2"); err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	n, err = Seed(ctx, slots, from.AddDate(0, 0, 1), SeedConfig{Days: 4})
	if err != nil || n != 1 {
		t.Fatalf("second Seed: %d %v", n, err)
	}
	slot, _ := slots.Get(ctx, "slot-2")
	if !slot.IsBooked {
		t.Fatal("reseeding must not reset existing slots")
	}
}
