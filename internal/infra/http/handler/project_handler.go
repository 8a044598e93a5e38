package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/leakwatchio/api/internal/app"
	"github.com/leakwatchio/api/pkg/apierror"
	"github.com/leakwatchio/api/pkg/domain/project"
	"github.com/leakwatchio/api/pkg/logger"
	"github.com/leakwatchio/api/pkg/pagination"
	"github.com/leakwatchio/api/pkg/validator"
)

// ProjectHandler handles project-related HTTP requests.
type ProjectHandler struct {
	service   *app.ProjectService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(svc *app.ProjectService, v *validator.Validator, log *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RepoURL   string    `json:"repo_url"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toProjectResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		RepoURL:   p.RepoURL,
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt,
	}
}

// Create handles POST /api/v1/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input app.CreateProjectInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	p, err := h.service.CreateProject(r.Context(), input)
	if err != nil {
		handleServiceError(w, h.logger, "Project", err)
		return
	}
	respondJSON(w, http.StatusCreated, toProjectResponse(p))
}

// Get handles GET /api/v1/projects/{project_name}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProject(r.Context(), r.PathValue("project_name"))
	if err != nil {
		handleServiceError(w, h.logger, "Project", err)
		return
	}
	respondJSON(w, http.StatusOK, toProjectResponse(p))
}

// List handles GET /api/v1/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListProjects(r.Context(), pagination.FromRequest(r))
	if err != nil {
		handleServiceError(w, h.logger, "Project", err)
		return
	}

	data := make([]ProjectResponse, len(result.Data))
	for i, p := range result.Data {
		data[i] = toProjectResponse(p)
	}
	respondJSON(w, http.StatusOK, ListResponse[ProjectResponse]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// Update handles PATCH /api/v1/projects/{project_name}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input app.UpdateProjectInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	p, err := h.service.UpdateProject(r.Context(), r.PathValue("project_name"), input)
	if err != nil {
		handleServiceError(w, h.logger, "Project", err)
		return
	}
	respondJSON(w, http.StatusOK, toProjectResponse(p))
}

// Delete handles DELETE /api/v1/projects/{project_name}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProject(r.Context(), r.PathValue("project_name")); err != nil {
		handleServiceError(w, h.logger, "Project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
