package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bobmcallan/toolsmith/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteModelError writes a classified error with a status derived from its kind.
func WriteModelError(w http.ResponseWriter, err error) error {
	var e *models.Error
	if !errors.As(err, &e) {
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}
	return WriteJSON(w, statusForKind(e.Kind), map[string]interface{}{
		"status":     "error",
		"error":      e.Message,
		"error_kind": e.Kind,
	})
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrKindNotFound:
		return http.StatusNotFound
	case models.ErrKindValidation:
		return http.StatusBadRequest
	case models.ErrKindUnauthorized:
		return http.StatusUnauthorized
	case models.ErrKindPermissionDenied:
		return http.StatusForbidden
	case models.ErrKindDiscoveryUnavailable, models.ErrKindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
