package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/leakwatchio/api/internal/app"
	"github.com/leakwatchio/api/pkg/apierror"
	"github.com/leakwatchio/api/pkg/domain/finding"
	"github.com/leakwatchio/api/pkg/logger"
	"github.com/leakwatchio/api/pkg/pagination"
	"github.com/leakwatchio/api/pkg/validator"
)

// FindingHandler handles finding listing and review actions.
type FindingHandler struct {
	service   *app.ReviewService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewFindingHandler creates a new finding handler.
func NewFindingHandler(svc *app.ReviewService, v *validator.Validator, log *logger.Logger) *FindingHandler {
	return &FindingHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// FindingResponse represents a finding in API responses.
type FindingResponse struct {
	ID               string     `json:"id"`
	ScanID           string     `json:"scan_id"`
	FilePath         string     `json:"file_path"`
	LineNumber       int        `json:"line_number"`
	RawValue         string     `json:"raw_value"`
	Type             string     `json:"type"`
	Severity         string     `json:"severity"`
	Confidence       float64    `json:"confidence"`
	Context          string     `json:"context,omitempty"`
	Status           string     `json:"status"`
	IsException      bool       `json:"is_exception"`
	ExceptionComment string     `json:"exception_comment,omitempty"`
	RefutedAt        *time.Time `json:"refuted_at,omitempty"`
	ReviewedBy       string     `json:"reviewed_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toFindingResponse(f *finding.Finding) FindingResponse {
	return FindingResponse{
		ID:               f.ID.String(),
		ScanID:           f.ScanID.String(),
		FilePath:         f.FilePath,
		LineNumber:       f.LineNumber,
		RawValue:         f.RawValue,
		Type:             f.Type,
		Severity:         f.Severity.String(),
		Confidence:       f.Confidence,
		Context:          f.Context,
		Status:           f.Status.String(),
		IsException:      f.IsException,
		ExceptionComment: f.ExceptionComment,
		RefutedAt:        f.RefutedAt,
		ReviewedBy:       f.ReviewedBy,
		CreatedAt:        f.CreatedAt,
	}
}

// ListByScan handles GET /api/v1/scans/{scan_id}/findings.
func (h *FindingHandler) ListByScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListFindings(r.Context(), r.PathValue("scan_id"), pagination.FromRequest(r))
	if err != nil {
		handleServiceError(w, h.logger, "Scan", err)
		return
	}

	data := make([]FindingResponse, len(result.Data))
	for i, f := range result.Data {
		data[i] = toFindingResponse(f)
	}
	respondJSON(w, http.StatusOK, ListResponse[FindingResponse]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// Get handles GET /api/v1/findings/{finding_id}.
func (h *FindingHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.GetFinding(r.Context(), r.PathValue("finding_id"))
	if err != nil {
		handleServiceError(w, h.logger, "Finding", err)
		return
	}
	respondJSON(w, http.StatusOK, toFindingResponse(f))
}

// UpdateStatus handles PUT /api/v1/findings/{finding_id}/status.
func (h *FindingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var input app.UpdateStatusInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	f, err := h.service.UpdateStatus(r.Context(), r.PathValue("finding_id"), input)
	if err != nil {
		handleServiceError(w, h.logger, "Finding", err)
		return
	}
	respondJSON(w, http.StatusOK, toFindingResponse(f))
}

// BulkUpdateStatus handles PUT /api/v1/findings/status.
func (h *FindingHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var input app.BulkUpdateStatusInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	updated, err := h.service.BulkUpdateStatus(r.Context(), input)
	if err != nil {
		// Some findings may already be updated; report how far we got.
		handleServiceError(w, h.logger, "Finding", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// AddManual handles POST /api/v1/scans/{scan_id}/findings.
func (h *FindingHandler) AddManual(w http.ResponseWriter, r *http.Request) {
	var input app.AddManualFindingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	f, err := h.service.AddManualFinding(r.Context(), r.PathValue("scan_id"), input)
	if err != nil {
		handleServiceError(w, h.logger, "Scan", err)
		return
	}
	respondJSON(w, http.StatusCreated, toFindingResponse(f))
}

// Delete handles DELETE /api/v1/findings/{finding_id}.
func (h *FindingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFinding(r.Context(), r.PathValue("finding_id")); err != nil {
		handleServiceError(w, h.logger, "Finding", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
