package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/usecase/tracker"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode request body: %v", tracker.ErrInvalidInput, err)
	}
	return nil
}

// writeError maps use case sentinels to status codes. Unknown errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tracker.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, tracker.ErrInvalidCredentials), errors.Is(err, tracker.ErrInvalidToken):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, tracker.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, tracker.ErrUserNotFound),
		errors.Is(err, tracker.ErrHospitalNotFound),
		errors.Is(err, tracker.ErrProcedureNotFound),
		errors.Is(err, tracker.ErrRuleNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tracker.ErrEmailTaken), errors.Is(err, tracker.ErrHospitalExists):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	default:
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		writeJSONError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
