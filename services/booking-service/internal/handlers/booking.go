package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/export"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/workflow"
)

type BookingHandler struct {
	slots    storage.SlotStore
	appts    storage.AppointmentStore
	bookings *booking.Service
	workflow *workflow.Service
	exports  *export.Service
	logger   *slog.Logger
}

func NewBookingHandler(slots storage.SlotStore, appts storage.AppointmentStore, bookings *booking.Service, flow *workflow.Service, exports *export.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		slots:    slots,
		appts:    appts,
		bookings: bookings,
		workflow: flow,
		exports:  exports,
		logger:   logger,
	}
}

// Routes mounts the public booking API. operator guards the back-office routes; nil leaves
// them open.
func (h *BookingHandler) Routes(operator func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/slots", h.Slots)
	r.Post("/api/bookings", h.Create)

	r.Group(func(r chi.Router) {
		if operator != nil {
			r.Use(operator)
		}
		r.Get("/api/bookings", h.List)
		r.Get("/api/bookings/export", h.Export)
		r.Put("/api/bookings/{id}", h.UpdateStatus)
		r.Delete("/api/bookings/{id}", h.Delete)
		r.Delete("/api/del/{id}", h.Delete)
	})
	return r
}

type slotItem struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	IsBooked bool   `json:"isBooked"`
}

type appointmentItem struct {
	ID        string `json:"id"`
	SlotID    string `json:"slotId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Reason    string `json:"reason"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type appointmentResponse struct {
	Message     string          `json:"message"`
	Appointment appointmentItem `json:"appointment"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		ID:        a.ID,
		SlotID:    a.SlotID,
		Name:      a.Name,
		Email:     a.Email,
		Reason:    a.Reason,
		Date:      a.Date.Format(model.DateLayout),
		Time:      a.Time,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.slots.ListAvailable(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{ID: s.ID, Date: s.Date.Format(model.DateLayout), Time: s.Time, IsBooked: s.IsBooked})
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid json body"})
		return
	}
	appt, err := h.bookings.Book(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentResponse{
		Message:     "Appointment booked successfully.",
		Appointment: toAppointmentItem(appt),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := model.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	appts, err := h.appts.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid json body"})
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "status is required", Fields: []string{"status"}})
		return
	}
	target, err := model.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	appt, err := h.workflow.Transition(r.Context(), chi.URLParam(r, "id"), target)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse{
		Message:     fmt.Sprintf("Booking %s", appt.Status),
		Appointment: toAppointmentItem(appt),
	})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	appt, err := h.workflow.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse{
		Message:     "Appointment canceled and slot freed successfully.",
		Appointment: toAppointmentItem(appt),
	})
}

func (h *BookingHandler) Export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.exports.ExportAll(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
