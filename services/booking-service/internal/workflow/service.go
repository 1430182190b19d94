package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxSwapAttempts bounds re-validation after losing a conditional status write.
const maxSwapAttempts = 3

// Service applies operator decisions to appointments:
//
//	pending  -approve-> approved
//	pending  -deny->    denied   (slot released)
//	approved -deny->    denied   (slot released)
//	any      -cancel->  removed  (slot released if it was still held)
//
// Every other pair is ErrInvalidTransition and changes nothing.
type Service struct {
	slots    storage.SlotStore
	appts    storage.AppointmentStore
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewService(slots storage.SlotStore, appts storage.AppointmentStore, notifier notify.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{slots: slots, appts: appts, notifier: notifier, logger: logger}
}

func (s *Service) Approve(ctx context.Context, id string) (model.Appointment, error) {
	ctx, span := startSpan(ctx, "workflow.Approve", id)
	defer span.End()

	appt, err := s.swap(ctx, id, "approve", model.StatusApproved, model.StatusPending)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Appointment{}, err
	}
	if err := s.notifier.NotifyApproved(ctx, appt); err != nil {
		s.logger.Warn("approved notification failed", "appointment_id", id, "err", err)
	}
	s.logger.Info("appointment approved", "appointment_id", id)
	return appt, nil
}

func (s *Service) Deny(ctx context.Context, id string) (model.Appointment, error) {
	ctx, span := startSpan(ctx, "workflow.Deny", id)
	defer span.End()

	appt, err := s.swap(ctx, id, "deny", model.StatusDenied, model.StatusPending, model.StatusApproved)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Appointment{}, err
	}
	s.release(ctx, appt)
	if err := s.notifier.NotifyDenied(ctx, appt); err != nil {
		s.logger.Warn("denied notification failed", "appointment_id", id, "err", err)
	}
	s.logger.Info("appointment denied", "appointment_id", id, "slot_id", appt.SlotID)
	return appt, nil
}

// Cancel deletes the appointment from any state and returns the removed record. A denied
// appointment gave its slot back when it was denied, so only active ones release it here.
func (s *Service) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	ctx, span := startSpan(ctx, "workflow.Cancel", id)
	defer span.End()

	appt, err := s.appts.Delete(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, model.ErrNotFound) {
			return model.Appointment{}, err
		}
		return model.Appointment{}, fmt.Errorf("delete appointment %s: %w", id, err)
	}
	if appt.Status.Active() {
		s.release(ctx, appt)
	}
	if err := s.notifier.NotifyCancelled(ctx, appt); err != nil {
		s.logger.Warn("cancelled notification failed", "appointment_id", id, "err", err)
	}
	s.logger.Info("appointment cancelled", "appointment_id", id, "slot_id", appt.SlotID, "previous_status", appt.Status)
	return appt, nil
}

// Transition routes a requested target status to Approve or Deny.
func (s *Service) Transition(ctx context.Context, id string, target model.Status) (model.Appointment, error) {
	switch target {
	case model.StatusApproved:
		return s.Approve(ctx, id)
	case model.StatusDenied:
		return s.Deny(ctx, id)
	}
	appt, err := s.appts.Find(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	return model.Appointment{}, &model.TransitionError{ID: id, From: appt.Status, Op: "move to " + string(target)}
}

// swap moves the appointment to `to` if its current status is one of `from`, re-reading when a
// concurrent writer got there first.
func (s *Service) swap(ctx context.Context, id, op string, to model.Status, from ...model.Status) (model.Appointment, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.appts.Find(ctx, id)
		if err != nil {
			return model.Appointment{}, err
		}
		if !slices.Contains(from, current.Status) {
			return model.Appointment{}, &model.TransitionError{ID: id, From: current.Status, Op: op}
		}
		updated, err := s.appts.SwapStatus(ctx, id, current.Status, to)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, model.ErrStatusChanged) || attempt+1 >= maxSwapAttempts {
			return model.Appointment{}, fmt.Errorf("%s appointment %s: %w", op, id, err)
		}
	}
}

// release runs after the status write or deletion is durable. It leaves the slot alone when
// another active appointment already holds it: between the write and this call the reconciler
// may have freed the slot and a new booking taken it. A failure leaves the slot held with no
// active appointment, which the reconciler sweeps.
func (s *Service) release(ctx context.Context, appt model.Appointment) {
	ctx = context.WithoutCancel(ctx)
	held, err := s.appts.HasActiveForSlot(ctx, appt.SlotID)
	if err == nil && held {
		s.logger.Info("slot re-booked before release; leaving it held",
			"appointment_id", appt.ID,
			"slot_id", appt.SlotID,
		)
		return
	}
	if err == nil {
		err = s.slots.Release(ctx, appt.SlotID)
	}
	if err != nil {
		s.logger.Error("slot release failed",
			"appointment_id", appt.ID,
			"slot_id", appt.SlotID,
			"err", err,
			"needs_reconciliation", true,
		)
	}
}

func startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	ctx, span := otelx.Tracer("workflow").Start(ctx, name)
	span.SetAttributes(attribute.String("appointment.id", id))
	return ctx, span
}
