package project

import (
	"context"

	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/pagination"
)

// Repository defines the interface for project persistence.
type Repository interface {
	// Create creates a new project.
	Create(ctx context.Context, p *Project) error

	// GetByName retrieves a project by its unique name.
	GetByName(ctx context.Context, name string) (*Project, error)

	// GetByRepoURL retrieves a project by its normalized repository URL.
	GetByRepoURL(ctx context.Context, repoURL string) (*Project, error)

	// List lists projects with pagination, newest first.
	List(ctx context.Context, page pagination.Pagination) (pagination.Result[*Project], error)

	// Update persists name/url changes.
	Update(ctx context.Context, p *Project) error

	// Delete deletes a project by id.
	Delete(ctx context.Context, id shared.ID) error
}
