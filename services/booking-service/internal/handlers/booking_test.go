package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/export"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/workflow"
)

type testServer struct {
	slots   *storage.MemorySlotStore
	appts   *storage.MemoryAppointmentStore
	handler http.Handler
}

func newTestServer(t *testing.T, operator func(http.Handler) http.Handler) testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	slots := storage.NewMemorySlotStore(
		model.Slot{ID: "slot-1", Date: time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), Time: "10:00 AM"},
		model.Slot{ID: "slot-2", Date: time.Date(2025, time.September, 2, 0, 0, 0, 0, time.UTC), Time: "10:00 AM"},
	)
	appts := storage.NewMemoryAppointmentStore()
	h := NewBookingHandler(slots, appts,
		booking.NewService(slots, appts, nil, logger),
		workflow.NewService(slots, appts, nil, logger),
		export.NewService(appts),
		logger,
	)
	return testServer{slots: slots, appts: appts, handler: h.Routes(operator)}
}

func (s testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "http://example.com"+path, rdr)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	return rw
}

func bookSlot(t *testing.T, s testServer, slotID string) appointmentItem {
	t.Helper()
	rw := s.do(t, http.MethodPost, "/api/bookings", `{"slotId":"`+slotID+`","name":"Ann","email":"a@x.com","reason":"checkup"}`)
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp appointmentResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Appointment
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t, nil)

	rw := s.do(t, http.MethodGet, "/api/slots", "")
	if rw.Code != http.StatusOK || rw.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("unexpected slots response %d %q", rw.Code, rw.Header().Get("Cache-Control"))
	}
	var slots []slotItem
	_ = json.Unmarshal(rw.Body.Bytes(), &slots)
	if len(slots) != 2 || slots[0].Date != "2025-09-01" {
		t.Fatalf("unexpected slots %+v", slots)
	}

	appt := bookSlot(t, s, "slot-1")
	if appt.Status != "pending" || appt.Date != "2025-09-01" || appt.Time != "10:00 AM" {
		t.Fatalf("unexpected appointment %+v", appt)
	}

	rw = s.do(t, http.MethodPost, "/api/bookings", `{"slotId":"slot-1","name":"Bo","email":"b@x.com","reason":"again"}`)
	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409 for booked slot, got %d", rw.Code)
	}

	rw = s.do(t, http.MethodPut, "/api/bookings/"+appt.ID, `{"status":"approved"}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rw.Code, rw.Body.String())
	}

	rw = s.do(t, http.MethodGet, "/api/bookings?status=approved", "")
	var list []appointmentItem
	_ = json.Unmarshal(rw.Body.Bytes(), &list)
	if rw.Code != http.StatusOK || len(list) != 1 || list[0].ID != appt.ID {
		t.Fatalf("unexpected filtered list %d %+v", rw.Code, list)
	}

	rw = s.do(t, http.MethodPut, "/api/bookings/"+appt.ID, `{"status":"denied"}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("deny: expected 200, got %d", rw.Code)
	}
	if slot, _ := s.slots.Get(context.Background(), "slot-1"); slot.IsBooked {
		t.Fatal("deny must release the slot")
	}

	rw = s.do(t, http.MethodPut, "/api/bookings/"+appt.ID, `{"status":"approved"}`)
	if rw.Code != http.StatusConflict {
		t.Fatalf("denied -> approved: expected 409, got %d", rw.Code)
	}

	rw = s.do(t, http.MethodDelete, "/api/del/"+appt.ID, "")
	if rw.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rw.Code)
	}
	rw = s.do(t, http.MethodDelete, "/api/bookings/"+appt.ID, "")
	if rw.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rw.Code)
	}
}

func TestBookingErrors(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing fields", http.MethodPost, "/api/bookings", `{"slotId":"slot-1"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/bookings", `{`, http.StatusBadRequest},
		{"unknown slot", http.MethodPost, "/api/bookings", `{"slotId":"slot-9","name":"a","email":"b","reason":"c"}`, http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/api/bookings?status=cancelled", "", http.StatusBadRequest},
		{"unknown appointment", http.MethodPut, "/api/bookings/nope", `{"status":"approved"}`, http.StatusNotFound},
		{"missing status", http.MethodPut, "/api/bookings/nope", `{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rw := s.do(t, tc.method, tc.path, tc.body)
			if rw.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rw.Code, rw.Body.String())
			}
		})
	}

	appt := bookSlot(t, s, "slot-2")
	rw := s.do(t, http.MethodPut, "/api/bookings/"+appt.ID, `{"status":"pending"}`)
	if rw.Code != http.StatusConflict {
		t.Fatalf("pending target: expected 409, got %d", rw.Code)
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t, nil)

	rw := s.do(t, http.MethodGet, "/api/bookings/export", "")
	if rw.Code != http.StatusOK || rw.Body.String() != "id,slotId,name,email,reason,status,date,time\n" {
		t.Fatalf("expected header-only export, got %d %q", rw.Code, rw.Body.String())
	}

	bookSlot(t, s, "slot-1")
	bookSlot(t, s, "slot-2")
	rw = s.do(t, http.MethodGet, "/api/bookings/export", "")
	if !strings.Contains(rw.Header().Get("Content-Disposition"), "bookings.csv") {
		t.Fatalf("unexpected disposition %q", rw.Header().Get("Content-Disposition"))
	}
	records, err := csv.NewReader(rw.Body).ReadAll()
	if err != nil || len(records) != 3 {
		t.Fatalf("expected 3 csv records, got %d (%v)", len(records), err)
	}
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	secret := "test-secret"
	operator := func(next http.Handler) http.Handler {
		return httpx.Chain(next, httpx.RequireBearer(secret), httpx.RequireRole("operator", "admin"))
	}
	s := newTestServer(t, operator)

	if rw := s.do(t, http.MethodGet, "/api/bookings", ""); rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rw.Code)
	}
	guest, _ := auth.IssueHS256("u1", "guest", time.Hour, secret)
	if rw := s.do(t, http.MethodGet, "/api/bookings", "", "Authorization", "Bearer "+guest); rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for guest, got %d", rw.Code)
	}
	op, _ := auth.IssueHS256("op1", "operator", time.Hour, secret)
	if rw := s.do(t, http.MethodGet, "/api/bookings", "", "Authorization", "Bearer "+op); rw.Code != http.StatusOK {
		t.Fatalf("expected 200 for operator, got %d", rw.Code)
	}

	// Customers book without a token.
	if rw := s.do(t, http.MethodGet, "/api/slots", ""); rw.Code != http.StatusOK {
		t.Fatalf("public route: expected 200, got %d", rw.Code)
	}
	bookSlot(t, s, "slot-1")
}
