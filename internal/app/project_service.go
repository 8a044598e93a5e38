package app

import (
	"context"
	"fmt"

	"github.com/leakwatchio/api/pkg/domain/project"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
	"github.com/leakwatchio/api/pkg/pagination"
)

// ProjectService manages the scannable repository catalog.
type ProjectService struct {
	projects project.Repository
	logger   *logger.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projects project.Repository, log *logger.Logger) *ProjectService {
	return &ProjectService{
		projects: projects,
		logger:   log.With("service", "project"),
	}
}

// CreateProjectInput represents the input for registering a project.
type CreateProjectInput struct {
	Name      string `json:"name" validate:"required,min=1,max=255"`
	RepoURL   string `json:"repo_url" validate:"required,url,max=1024"`
	CreatedBy string `json:"created_by" validate:"max=255"`
}

// CreateProject registers a new project. Names and normalized repository URLs
// are both unique.
func (s *ProjectService) CreateProject(ctx context.Context, input CreateProjectInput) (*project.Project, error) {
	p, err := project.New(input.Name, input.RepoURL, input.CreatedBy)
	if err != nil {
		return nil, err
	}

	if err := s.projects.Create(ctx, p); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil, shared.NewDomainError("PROJECT_EXISTS", "project name or repository URL already registered", shared.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Info("project created", "project_id", p.ID.String(), "name", p.Name)
	return p, nil
}

// GetProject retrieves a project by name.
func (s *ProjectService) GetProject(ctx context.Context, name string) (*project.Project, error) {
	return s.projects.GetByName(ctx, name)
}

// ListProjects lists projects with pagination.
func (s *ProjectService) ListProjects(ctx context.Context, page pagination.Pagination) (pagination.Result[*project.Project], error) {
	return s.projects.List(ctx, page)
}

// UpdateProjectInput represents a rename and/or URL update.
type UpdateProjectInput struct {
	Name    string `json:"name" validate:"omitempty,min=1,max=255"`
	RepoURL string `json:"repo_url" validate:"omitempty,url,max=1024"`
}

// UpdateProject renames a project or replaces its repository URL.
func (s *ProjectService) UpdateProject(ctx context.Context, name string, input UpdateProjectInput) (*project.Project, error) {
	p, err := s.projects.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		if err := p.Rename(input.Name); err != nil {
			return nil, err
		}
	}
	if input.RepoURL != "" {
		if err := p.UpdateRepoURL(input.RepoURL); err != nil {
			return nil, err
		}
	}

	if err := s.projects.Update(ctx, p); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil, shared.NewDomainError("PROJECT_EXISTS", "project name or repository URL already registered", shared.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.logger.Info("project updated", "project_id", p.ID.String(), "name", p.Name)
	return p, nil
}

// DeleteProject removes a project by name.
func (s *ProjectService) DeleteProject(ctx context.Context, name string) error {
	p, err := s.projects.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, p.ID); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", p.ID.String(), "name", p.Name)
	return nil
}
