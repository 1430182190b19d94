package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

// Worker releases slots left booked with no active appointment: a booking whose appointment
// write and compensation both failed, or a deny/cancel that crashed before releasing.
type Worker struct {
	slots    storage.SlotStore
	appts    storage.AppointmentStore
	logger   *slog.Logger
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

type WorkerConfig struct {
	Interval time.Duration
	// Grace keeps the sweep away from reservations whose appointment is still being written.
	Grace time.Duration
}

func NewWorker(slots storage.SlotStore, appts storage.AppointmentStore, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 5 * time.Minute
	}
	return &Worker{
		slots:    slots,
		appts:    appts,
		logger:   logger,
		interval: cfg.Interval,
		grace:    cfg.Grace,
		now:      time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("reconcile sweep failed", "err", err)
			}
		}
	}
}

// Sweep runs one pass and returns the ids of the slots it released.
func (w *Worker) Sweep(ctx context.Context) ([]string, error) {
	cutoff := w.now().UTC().Add(-w.grace)
	booked, err := w.slots.ListBooked(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var released []string
	for _, slot := range booked {
		active, err := w.appts.HasActiveForSlot(ctx, slot.ID)
		if err != nil {
			w.logger.Warn("reconcile lookup failed", "slot_id", slot.ID, "err", err)
			continue
		}
		if active {
			continue
		}
		ok, err := w.slots.ReleaseIfBookedBefore(ctx, slot.ID, cutoff)
		if err != nil {
			w.logger.Warn("reconcile release failed", "slot_id", slot.ID, "err", err)
			continue
		}
		if ok {
			w.logger.Info("orphaned slot released", "slot_id", slot.ID, "booked_at", slot.BookedAt)
			released = append(released, slot.ID)
		}
	}
	return released, nil
}
