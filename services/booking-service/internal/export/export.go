package export

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

// Header is the fixed column order of every export.
var Header = []string{"id", "slotId", "name", "email", "reason", "status", "date", "time"}

type Row struct {
	ID     string
	SlotID string
	Name   string
	Email  string
	Reason string
	Status string
	Date   string
	Time   string
}

func (r Row) record() []string {
	return []string{r.ID, r.SlotID, r.Name, r.Email, r.Reason, r.Status, r.Date, r.Time}
}

func RowFrom(appt model.Appointment) Row {
	return Row{
		ID:     appt.ID,
		SlotID: appt.SlotID,
		Name:   appt.Name,
		Email:  appt.Email,
		Reason: appt.Reason,
		Status: string(appt.Status),
		Date:   appt.Date.Format(model.DateLayout),
		Time:   appt.Time,
	}
}

type Service struct {
	appts storage.AppointmentStore
}

func NewService(appts storage.AppointmentStore) *Service {
	return &Service{appts: appts}
}

// ExportAll projects every appointment, in creation order, into export rows.
func (s *Service) ExportAll(ctx context.Context) ([]Row, error) {
	appts, err := s.appts.List(ctx, "")
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(appts))
	for _, a := range appts {
		rows = append(rows, RowFrom(a))
	}
	return rows, nil
}

// WriteCSV writes the header and one line per row. Zero rows still produce the header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
