// Package handler implements the HTTP handlers of the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leakwatchio/api/pkg/apierror"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
	"github.com/leakwatchio/api/pkg/validator"
)

// ListResponse represents a paginated list response.
type ListResponse[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// handleValidationError converts validation errors to API errors.
func handleValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierror.ValidationFailed("Validation failed", validationErrors).WriteJSON(w)
		return
	}
	apierror.BadRequest("Validation error").WriteJSON(w)
}

// handleServiceError converts service errors to API errors. resource names
// the entity for 404 messages.
func handleServiceError(w http.ResponseWriter, log *logger.Logger, resource string, err error) {
	switch {
	case shared.IsNotFound(err):
		apierror.NotFound(resource).WriteJSON(w)
	case shared.IsAlreadyExists(err):
		apierror.Conflict(err.Error()).WriteJSON(w)
	case shared.IsValidation(err), errors.Is(err, shared.ErrInvalidInput):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	case shared.IsConflict(err):
		apierror.Conflict(err.Error()).WriteJSON(w)
	default:
		log.Error("service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
