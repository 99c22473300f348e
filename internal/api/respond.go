package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flatscout/flatscout/internal/archive"
	"github.com/flatscout/flatscout/internal/database"
	"github.com/flatscout/flatscout/internal/model"
	"github.com/flatscout/flatscout/internal/report"
	"github.com/flatscout/flatscout/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSONError writes {"error": message} with the given status.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, errorResponse{Error: message})
}

// respondWithJSON writes payload as JSON with the given status.
func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to marshal JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidConfig),
		errors.Is(err, report.ErrInvalidReport),
		errors.Is(err, model.ErrEmptyStreet),
		errors.Is(err, model.ErrEmptyHouseNumber),
		errors.Is(err, model.ErrEmptyCity):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrAlreadyRunning),
		errors.Is(err, archive.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, archive.ErrNotFound),
		errors.Is(err, database.ErrAddressNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
