package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Active statuses hold a slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// ParseStatus accepts the three status names case-insensitively. An empty string parses to
// the empty Status, which list filters treat as "all".
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case "", StatusPending, StatusApproved, StatusDenied:
		return s, nil
	default:
		return "", &ValidationError{Fields: []string{"status"}, Msg: fmt.Sprintf("unknown status %q", raw)}
	}
}

type Appointment struct {
	ID        string
	SlotID    string
	Name      string
	Email     string
	Reason    string
	Date      time.Time
	Time      string
	Status    Status
	CreatedAt time.Time
}
