package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrSlotUnavailable    = errors.New("slot unavailable")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrNotificationFailed = errors.New("notification failed")

	ErrDuplicateID = errors.New("duplicate id")
	// ErrStatusChanged reports a conditional status write that lost to a concurrent one.
	ErrStatusChanged = errors.New("status changed concurrently")
)

// ValidationError lists the offending request fields. It matches ErrValidation.
type ValidationError struct {
	Fields []string
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// CompensationError is returned when an appointment write failed and releasing the reserved slot
// failed too, leaving the slot booked with no appointment.
type CompensationError struct {
	SlotID              string
	Cause               error
	ReleaseErr          error
	NeedsReconciliation bool
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("create appointment for slot %s: %v; release failed: %v", e.SlotID, e.Cause, e.ReleaseErr)
}

func (e *CompensationError) Unwrap() []error { return []error{e.Cause, e.ReleaseErr} }

// TransitionError names the rejected operation and the state it was attempted from.
type TransitionError struct {
	ID   string
	From Status
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s appointment %s in state %s", e.Op, e.ID, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
