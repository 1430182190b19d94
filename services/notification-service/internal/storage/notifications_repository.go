package storage

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/libs/db"
)

const Schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id             BIGSERIAL PRIMARY KEY,
	event_id       TEXT NOT NULL,
	kind           TEXT NOT NULL,
	appointment_id TEXT NOT NULL,
	recipient      TEXT NOT NULL,
	subject        TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	error_reason   TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt for a lifecycle event.
type Notification struct {
	EventID       string
	Kind          string
	AppointmentID string
	Recipient     string
	Subject       string
	Status        string
	ErrorReason   string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, kind, appointment_id, recipient, subject, status, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.EventID, n.Kind, n.AppointmentID, n.Recipient, n.Subject, n.Status, n.ErrorReason)
	return err
}
