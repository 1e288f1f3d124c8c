package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Status converts core/infra errors into HTTP status codes.
// Keeps handlers clean by centralizing error mapping.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized

	case errors.Is(err, ErrInvalidOperation):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotAParticipant), errors.Is(err, ErrMatchInactive):
		return http.StatusForbidden

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrDuplicateDecision):
		// benign idempotency signal; callers normally never let it reach here
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded), IsTransient(err):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.Canceled):
		// client went away; 499 by nginx convention
		return 499

	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes err as a JSON error response with the mapped status code.
// Transient and internal failures get a generic message; the rest keep their
// user-actionable text.
func WriteJSON(w http.ResponseWriter, err error) {
	code := Status(err)

	msg := err.Error()
	if code >= http.StatusInternalServerError {
		msg = "something went wrong, please try again"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
