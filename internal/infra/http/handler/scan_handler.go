package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/leakwatchio/api/internal/app"
	"github.com/leakwatchio/api/internal/infra/engine"
	"github.com/leakwatchio/api/pkg/apierror"
	"github.com/leakwatchio/api/pkg/domain/multiscan"
	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
	"github.com/leakwatchio/api/pkg/pagination"
	"github.com/leakwatchio/api/pkg/validator"
)

// ScanHandler handles scan-related HTTP requests.
type ScanHandler struct {
	service   *app.ScanService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(svc *app.ScanService, v *validator.Validator, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// ScanResponse represents a scan in API responses.
type ScanResponse struct {
	ID                 string     `json:"id"`
	ProjectName        string     `json:"project_name"`
	RefType            string     `json:"ref_type"`
	Ref                string     `json:"ref"`
	RepoCommit         string     `json:"repo_commit,omitempty"`
	Status             string     `json:"status"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	FilesScanned       int        `json:"files_scanned"`
	ExcludedFilesCount int        `json:"excluded_files_count"`
	ExcludedFiles      []string   `json:"excluded_files,omitempty"`
	DetectedLanguages  []string   `json:"detected_languages,omitempty"`
	DetectedFrameworks []string   `json:"detected_frameworks,omitempty"`
	HighCount          int        `json:"high_secrets_count"`
	PotentialCount     int        `json:"potential_secrets_count"`
	Initiator          string     `json:"initiator,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toScanResponse(sc *scan.Scan) ScanResponse {
	return ScanResponse{
		ID:                 sc.ID.String(),
		ProjectName:        sc.ProjectName,
		RefType:            sc.RefType.String(),
		Ref:                sc.Ref,
		RepoCommit:         sc.RepoCommit,
		Status:             sc.Status.String(),
		ErrorMessage:       sc.ErrorMessage,
		StartedAt:          sc.StartedAt,
		CompletedAt:        sc.CompletedAt,
		FilesScanned:       sc.FilesScanned,
		ExcludedFilesCount: sc.ExcludedFilesCount,
		ExcludedFiles:      sc.ExcludedFiles,
		DetectedLanguages:  sc.DetectedLanguages,
		DetectedFrameworks: sc.DetectedFrameworks,
		HighCount:          sc.HighCount,
		PotentialCount:     sc.PotentialCount,
		Initiator:          sc.Initiator,
		CreatedAt:          sc.CreatedAt,
		UpdatedAt:          sc.UpdatedAt,
	}
}

// MultiScanResponse represents a multi-scan batch in API responses.
type MultiScanResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ScanIDs   []string  `json:"scan_ids"`
	Initiator string    `json:"initiator,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toMultiScanResponse(ms *multiscan.MultiScan) MultiScanResponse {
	ids := make([]string, len(ms.ScanIDs))
	for i, id := range ms.ScanIDs {
		ids[i] = id.String()
	}
	return MultiScanResponse{
		ID:        ms.ID.String(),
		Name:      ms.Name,
		ScanIDs:   ids,
		Initiator: ms.Initiator,
		CreatedAt: ms.CreatedAt,
	}
}

// Start handles POST /api/v1/scans.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var input app.StartScanInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	sc, err := h.service.StartScan(r.Context(), input)
	if err != nil {
		h.handleDispatchError(w, sc, err)
		return
	}

	respondJSON(w, http.StatusCreated, toScanResponse(sc))
}

// StartMulti handles POST /api/v1/multi_scans.
func (h *ScanHandler) StartMulti(w http.ResponseWriter, r *http.Request) {
	var input app.StartMultiScanInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	batch, scans, err := h.service.StartMultiScan(r.Context(), input)
	if err != nil {
		// Scans may exist in failed state even when the batch was discarded;
		// include them so the caller can inspect per-item outcomes.
		h.handleMultiDispatchError(w, scans, err)
		return
	}

	scanData := make([]ScanResponse, len(scans))
	for i, sc := range scans {
		scanData[i] = toScanResponse(sc)
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"multi_scan": toMultiScanResponse(batch),
		"scans":      scanData,
	})
}

// Get handles GET /api/v1/scans/{scan_id}.
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	sc, err := h.service.GetScan(r.Context(), r.PathValue("scan_id"))
	if err != nil {
		handleServiceError(w, h.logger, "Scan", err)
		return
	}
	respondJSON(w, http.StatusOK, toScanResponse(sc))
}

// List handles GET /api/v1/scans.
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := scan.Filter{
		ProjectName: query.Get("project"),
		Initiator:   query.Get("initiator"),
	}
	if status := query.Get("status"); status != "" {
		st := scan.Status(status)
		if !st.IsValid() {
			apierror.BadRequest("Invalid status filter").WriteJSON(w)
			return
		}
		filter.Status = &st
	}

	result, err := h.service.ListScans(r.Context(), filter, pagination.FromRequest(r))
	if err != nil {
		handleServiceError(w, h.logger, "Scan", err)
		return
	}

	data := make([]ScanResponse, len(result.Data))
	for i, sc := range result.Data {
		data[i] = toScanResponse(sc)
	}
	respondJSON(w, http.StatusOK, ListResponse[ScanResponse]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// Delete handles DELETE /api/v1/scans/{scan_id}.
func (h *ScanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteScan(r.Context(), r.PathValue("scan_id")); err != nil {
		handleServiceError(w, h.logger, "Scan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMulti handles GET /api/v1/multi_scans/{multi_scan_id}.
func (h *ScanHandler) GetMulti(w http.ResponseWriter, r *http.Request) {
	ms, err := h.service.GetMultiScan(r.Context(), r.PathValue("multi_scan_id"))
	if err != nil {
		handleServiceError(w, h.logger, "Multi-scan", err)
		return
	}
	respondJSON(w, http.StatusOK, toMultiScanResponse(ms))
}

// ListMulti handles GET /api/v1/multi_scans.
func (h *ScanHandler) ListMulti(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListMultiScans(r.Context(), pagination.FromRequest(r))
	if err != nil {
		handleServiceError(w, h.logger, "Multi-scan", err)
		return
	}

	data := make([]MultiScanResponse, len(result.Data))
	for i, ms := range result.Data {
		data[i] = toMultiScanResponse(ms)
	}
	respondJSON(w, http.StatusOK, ListResponse[MultiScanResponse]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// handleDispatchError maps dispatch failures onto HTTP statuses. The failed
// scan record, when one exists, rides along in the error details so callers
// can link to it.
func (h *ScanHandler) handleDispatchError(w http.ResponseWriter, sc *scan.Scan, err error) {
	apiErr := h.dispatchError(err)
	if sc != nil {
		apiErr = apiErr.WithDetails(map[string]any{"scan": toScanResponse(sc)})
	}
	apiErr.WriteJSON(w)
}

func (h *ScanHandler) handleMultiDispatchError(w http.ResponseWriter, scans []*scan.Scan, err error) {
	apiErr := h.dispatchError(err)
	if len(scans) > 0 {
		data := make([]ScanResponse, len(scans))
		for i, sc := range scans {
			data[i] = toScanResponse(sc)
		}
		apiErr = apiErr.WithDetails(map[string]any{"scans": data})
	}
	apiErr.WriteJSON(w)
}

func (h *ScanHandler) dispatchError(err error) *apierror.Error {
	var rejection *engine.RejectionError
	switch {
	case shared.IsNotFound(err):
		return apierror.NotFound("Project")
	case shared.IsValidation(err), errors.Is(err, shared.ErrInvalidInput):
		return apierror.BadRequest(err.Error())
	case shared.IsConflict(err):
		return apierror.Conflict(err.Error())
	case errors.Is(err, engine.ErrTimeout):
		return apierror.GatewayTimeout("Detection engine timed out")
	case errors.Is(err, engine.ErrUnavailable):
		return apierror.ServiceUnavailable("Detection engine unavailable")
	case errors.As(err, &rejection):
		return apierror.BadRequest(rejection.Error())
	default:
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "ENGINE_UNAVAILABLE" {
			return apierror.ServiceUnavailable(domainErr.Message)
		}
		h.logger.Error("scan dispatch failed", "error", err)
		return apierror.InternalError(err)
	}
}
