package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Request is a booking attempt. Fields are trimmed before validation.
type Request struct {
	SlotID string `json:"slotId" validate:"required,max=128"`
	Name   string `json:"name" validate:"required,max=200"`
	Email  string `json:"email" validate:"required,max=320"`
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (r *Request) normalize() {
	r.SlotID = strings.TrimSpace(r.SlotID)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Reason = strings.TrimSpace(r.Reason)
}

type Service struct {
	slots    storage.SlotStore
	appts    storage.AppointmentStore
	notifier notify.Notifier
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

func NewService(slots storage.SlotStore, appts storage.AppointmentStore, notifier notify.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		slots:    slots,
		appts:    appts,
		notifier: notifier,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Book reserves the slot and records a pending appointment. Either both happen or neither
// persists; the booked notification is sent best-effort afterwards.
func (s *Service) Book(ctx context.Context, req Request) (model.Appointment, error) {
	ctx, span := otelx.Tracer("booking").Start(ctx, "booking.Book")
	defer span.End()

	req.normalize()
	if err := s.validateRequest(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("slot.id", req.SlotID))

	slot, err := s.slots.TryReserve(ctx, req.SlotID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, model.ErrSlotUnavailable) || errors.Is(err, model.ErrNotFound) {
			return model.Appointment{}, err
		}
		return model.Appointment{}, fmt.Errorf("reserve slot %s: %w", req.SlotID, err)
	}

	appt := model.Appointment{
		ID:        s.newID(),
		SlotID:    slot.ID,
		Name:      req.Name,
		Email:     req.Email,
		Reason:    req.Reason,
		Date:      slot.Date,
		Time:      slot.Time,
		Status:    model.StatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.appts.Create(ctx, appt); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Appointment{}, s.compensate(ctx, slot.ID, err)
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID))

	if err := s.notifier.NotifyBooked(ctx, appt); err != nil {
		s.logger.Warn("booked notification failed", "appointment_id", appt.ID, "err", err)
	}
	s.logger.Info("appointment booked", "appointment_id", appt.ID, "slot_id", slot.ID)
	return appt, nil
}

// compensate frees the slot reserved for a failed appointment write. A slot already held by
// another active appointment is left alone.
func (s *Service) compensate(ctx context.Context, slotID string, cause error) error {
	if errors.Is(cause, model.ErrSlotUnavailable) {
		return cause
	}
	releaseCtx := context.WithoutCancel(ctx)
	if err := s.slots.Release(releaseCtx, slotID); err != nil {
		s.logger.Error("compensating slot release failed",
			"slot_id", slotID,
			"err", err,
			"cause", cause,
			"needs_reconciliation", true,
		)
		return &model.CompensationError{SlotID: slotID, Cause: cause, ReleaseErr: err, NeedsReconciliation: true}
	}
	s.logger.Warn("appointment create failed, slot released", "slot_id", slotID, "err", cause)
	return fmt.Errorf("create appointment: %w", cause)
}

func (s *Service) validateRequest(req Request) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &model.ValidationError{Msg: err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, jsonField(fe.Field()))
	}
	return &model.ValidationError{Fields: fields}
}

func jsonField(name string) string {
	switch name {
	case "SlotID":
		return "slotId"
	default:
		return strings.ToLower(name)
	}
}
