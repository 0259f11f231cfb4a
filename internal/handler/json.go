package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/msomdec/quill/internal/domain"
)

const maxJSONBody = 1 << 20

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// writeError sends a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes the request body into the given destination.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeServiceError maps a service error to a status code. Errors without
// a known sentinel are logged under action and reported as 500.
func writeServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrDuplicateIdentity):
		writeError(w, http.StatusConflict, duplicateMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrAuthFailure):
		writeError(w, http.StatusUnauthorized, "Login Unsuccessful. Please check email and password.")
	case errors.Is(err, domain.ErrTokenInvalid):
		writeError(w, http.StatusBadRequest, "That is an invalid or expired token.")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
	case errors.Is(err, domain.ErrDeliveryFailure):
		slog.Error(action, "error", err)
		writeError(w, http.StatusBadGateway, "The email could not be sent. Please try again later.")
	default:
		slog.Error(action, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
	}
}

func duplicateMessage(err error) string {
	if strings.Contains(err.Error(), "email is taken") {
		return "That email is taken. Please choose a different one."
	}
	return "That username is taken. Please choose a different one."
}
