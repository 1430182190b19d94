package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type errorResponse struct {
	Message             string   `json:"message"`
	Fields              []string `json:"fields,omitempty"`
	NeedsReconciliation bool     `json:"needs_reconciliation,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses. Anything unrecognised is a 500 and is logged.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		verr *model.ValidationError
		cerr *model.CompensationError
	)
	switch {
	case errors.As(err, &cerr):
		logger.Error("booking needs reconciliation",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"slot_id", cerr.SlotID,
			"err", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Message:             "booking failed and the slot could not be released",
			NeedsReconciliation: true,
		})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, model.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, model.ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "slot unavailable"})
	case errors.Is(err, model.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Message: err.Error()})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "not found"})
	default:
		logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"err", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}
