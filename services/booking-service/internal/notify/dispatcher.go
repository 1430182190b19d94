package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds one delivery attempt.
	Timeout time.Duration
}

type job struct {
	ctx  context.Context
	kind string
	id   string
	fn   func(context.Context) error
}

// Dispatcher hands notifications to a bounded worker pool so callers never wait on delivery.
// When the queue is full the notification is dropped and ErrNotificationFailed returned.
type Dispatcher struct {
	next    Notifier
	logger  *slog.Logger
	timeout time.Duration
	jobs    chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(next Notifier, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	d := &Dispatcher{
		next:    next,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan job, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) NotifyBooked(ctx context.Context, appt model.Appointment) error {
	return d.enqueue(ctx, "booked", appt, d.next.NotifyBooked)
}

func (d *Dispatcher) NotifyApproved(ctx context.Context, appt model.Appointment) error {
	return d.enqueue(ctx, "approved", appt, d.next.NotifyApproved)
}

func (d *Dispatcher) NotifyDenied(ctx context.Context, appt model.Appointment) error {
	return d.enqueue(ctx, "denied", appt, d.next.NotifyDenied)
}

func (d *Dispatcher) NotifyCancelled(ctx context.Context, appt model.Appointment) error {
	return d.enqueue(ctx, "cancelled", appt, d.next.NotifyCancelled)
}

func (d *Dispatcher) enqueue(ctx context.Context, kind string, appt model.Appointment, fn func(context.Context, model.Appointment) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return fmt.Errorf("%w: dispatcher closed", model.ErrNotificationFailed)
	}
	j := job{
		// Keep trace and request values, drop the request's cancellation.
		ctx:  context.WithoutCancel(ctx),
		kind: kind,
		id:   appt.ID,
		fn:   func(ctx context.Context) error { return fn(ctx, appt) },
	}
	select {
	case d.jobs <- j:
		return nil
	default:
		return fmt.Errorf("%w: queue full, dropped %s notification for %s", model.ErrNotificationFailed, kind, appt.ID)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
		err := j.fn(ctx)
		cancel()
		if err != nil {
			d.logger.Warn("notification failed", "kind", j.kind, "appointment_id", j.id, "err", err)
			continue
		}
		d.logger.Debug("notification sent", "kind", j.kind, "appointment_id", j.id)
	}
}

// Close stops accepting work and waits for queued notifications, up to ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
