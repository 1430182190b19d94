package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Schema is applied by Pool.Migrate when DB_AUTO_MIGRATE is on. The partial unique index keeps
// at most one active appointment per slot even if the slot flag and the rows drift apart.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS slots (
		id TEXT PRIMARY KEY,
		slot_date DATE NOT NULL,
		slot_time TEXT NOT NULL,
		is_booked BOOLEAN NOT NULL DEFAULT false,
		booked_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS slots_available_idx ON slots (slot_date, slot_time, id) WHERE is_booked = false`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		slot_id TEXT NOT NULL REFERENCES slots (id),
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		reason TEXT NOT NULL,
		slot_date DATE NOT NULL,
		slot_time TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'denied')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS appointments_status_created_idx ON appointments (status, created_at, id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_idx ON appointments (slot_id) WHERE status IN ('pending', 'approved')`,
}

const activeSlotIndex = "appointments_active_slot_idx"

type PostgresSlotStore struct {
	pool *db.Pool
}

func NewPostgresSlotStore(pool *db.Pool) *PostgresSlotStore {
	return &PostgresSlotStore{pool: pool}
}

const slotColumns = `id, slot_date, slot_time, is_booked, booked_at`

func scanSlot(row pgx.Row) (model.Slot, error) {
	var slot model.Slot
	if err := row.Scan(&slot.ID, &slot.Date, &slot.Time, &slot.IsBooked, &slot.BookedAt); err != nil {
		return model.Slot{}, err
	}
	slot.Date = model.DateOnly(slot.Date)
	return slot, nil
}

func (s *PostgresSlotStore) querySlots(ctx context.Context, sql string, args ...any) ([]model.Slot, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

func (s *PostgresSlotStore) ListAvailable(ctx context.Context) ([]model.Slot, error) {
	return s.querySlots(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE is_booked = false
		ORDER BY slot_date, slot_time, id
	`)
}

func (s *PostgresSlotStore) TryReserve(ctx context.Context, slotID string) (model.Slot, error) {
	slot, err := scanSlot(s.pool.QueryRow(ctx, `
		UPDATE slots
		SET is_booked = true,
			booked_at = now()
		WHERE id = $1 AND is_booked = false
		RETURNING `+slotColumns, slotID))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Slot{}, err
	}
	exists, err := s.exists(ctx, slotID)
	if err != nil {
		return model.Slot{}, err
	}
	if !exists {
		return model.Slot{}, model.ErrNotFound
	}
	return model.Slot{}, model.ErrSlotUnavailable
}

func (s *PostgresSlotStore) Release(ctx context.Context, slotID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE slots
		SET is_booked = false,
			booked_at = NULL
		WHERE id = $1
	`, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresSlotStore) Get(ctx context.Context, slotID string) (model.Slot, error) {
	slot, err := scanSlot(s.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, slotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Slot{}, model.ErrNotFound
	}
	return slot, err
}

func (s *PostgresSlotStore) Add(ctx context.Context, slot model.Slot) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO slots (id, slot_date, slot_time, is_booked, booked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, slot.ID, model.DateOnly(slot.Date), slot.Time, slot.IsBooked, slot.BookedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresSlotStore) ListBooked(ctx context.Context, bookedBefore time.Time) ([]model.Slot, error) {
	return s.querySlots(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE is_booked = true AND booked_at < $1
		ORDER BY slot_date, slot_time, id
	`, bookedBefore)
}

// ReleaseIfBookedBefore also refuses to free a slot that an active appointment still holds.
func (s *PostgresSlotStore) ReleaseIfBookedBefore(ctx context.Context, slotID string, cutoff time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE slots
		SET is_booked = false,
			booked_at = NULL
		WHERE id = $1
			AND is_booked = true
			AND booked_at < $2
			AND NOT EXISTS (
				SELECT 1 FROM appointments
				WHERE slot_id = $1 AND status IN ('pending', 'approved')
			)
	`, slotID, cutoff)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	exists, err := s.exists(ctx, slotID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, model.ErrNotFound
	}
	return false, nil
}

func (s *PostgresSlotStore) exists(ctx context.Context, slotID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, slotID).Scan(&exists)
	return exists, err
}

type PostgresAppointmentStore struct {
	pool *db.Pool
}

func NewPostgresAppointmentStore(pool *db.Pool) *PostgresAppointmentStore {
	return &PostgresAppointmentStore{pool: pool}
}

const appointmentColumns = `id, slot_id, name, email, reason, slot_date, slot_time, status, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	if err := row.Scan(
		&appt.ID,
		&appt.SlotID,
		&appt.Name,
		&appt.Email,
		&appt.Reason,
		&appt.Date,
		&appt.Time,
		&status,
		&appt.CreatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.Date = model.DateOnly(appt.Date)
	return appt, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

func (s *PostgresAppointmentStore) Create(ctx context.Context, appt model.Appointment) error {
	createdAt := appt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, appt.ID, appt.SlotID, appt.Name, appt.Email, appt.Reason,
		model.DateOnly(appt.Date), appt.Time, string(appt.Status), createdAt)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && db.IsUniqueViolation(err) {
		if pgErr.ConstraintName == activeSlotIndex {
			return fmt.Errorf("slot %s already has an active appointment: %w", appt.SlotID, model.ErrSlotUnavailable)
		}
		return model.ErrDuplicateID
	}
	return err
}

func (s *PostgresAppointmentStore) Find(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE id = $1
	`, id))
	return appt, notFound(err)
}

func (s *PostgresAppointmentStore) List(ctx context.Context, filter model.Status) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE $1 = '' OR status = $1
		ORDER BY created_at, id
	`, string(filter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := []model.Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (s *PostgresAppointmentStore) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	appt, err := scanAppointment(s.pool.QueryRow(ctx, `
		UPDATE appointments SET status = $2 WHERE id = $1
		RETURNING `+appointmentColumns, id, string(status)))
	return appt, notFound(err)
}

func (s *PostgresAppointmentStore) SwapStatus(ctx context.Context, id string, from, to model.Status) (model.Appointment, error) {
	appt, err := scanAppointment(s.pool.QueryRow(ctx, `
		UPDATE appointments SET status = $3 WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns, id, string(from), string(to)))
	if !errors.Is(err, pgx.ErrNoRows) {
		return appt, err
	}
	if _, findErr := s.Find(ctx, id); findErr != nil {
		return model.Appointment{}, findErr
	}
	return model.Appointment{}, model.ErrStatusChanged
}

func (s *PostgresAppointmentStore) Delete(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(s.pool.QueryRow(ctx, `
		DELETE FROM appointments WHERE id = $1
		RETURNING `+appointmentColumns, id))
	return appt, notFound(err)
}

func (s *PostgresAppointmentStore) HasActiveForSlot(ctx context.Context, slotID string) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE slot_id = $1 AND status IN ('pending', 'approved')
		)
	`, slotID).Scan(&active)
	return active, err
}
