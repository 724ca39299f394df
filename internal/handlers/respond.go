package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"farm-advisor/internal/models"
	"farm-advisor/internal/repository"
	"farm-advisor/internal/services"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// responder carries the JSON helpers shared by every handler
type responder struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// sendJSON sends a JSON response
func (h *responder) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *responder) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIError(errorType(statusCode), routeName(r))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// sendServiceError maps a service or core error to its HTTP status.
// Anything unrecognized is logged and hidden behind a 500.
func (h *responder) sendServiceError(w http.ResponseWriter, r *http.Request, tag string, err error) {
	var (
		labelErr    *models.UnknownLabelError
		validErr    *models.ValidationError
		conflictErr *repository.ConflictError
		notFoundErr *repository.NotFoundError
	)

	switch {
	case errors.As(err, &labelErr):
		h.sendError(w, r, labelErr.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &validErr):
		h.sendError(w, r, validErr.Error(), http.StatusBadRequest)
	case errors.As(err, &conflictErr):
		h.sendError(w, r, conflictErr.Error(), http.StatusConflict)
	case errors.As(err, &notFoundErr):
		h.sendError(w, r, notFoundErr.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidCredentials):
		h.sendError(w, r, "invalid credentials", http.StatusUnauthorized)
	default:
		h.logger.Error(r.Context(), tag+" Request failed", logging.Fields{
			"path":   r.URL.Path,
			"method": r.Method,
		}, err)
		h.sendError(w, r, "internal server error", http.StatusInternalServerError)
	}
}

func errorType(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusUnprocessableEntity:
		return "unknown_label"
	default:
		if statusCode >= 500 {
			return "internal_error"
		}
		return "client_error"
	}
}
