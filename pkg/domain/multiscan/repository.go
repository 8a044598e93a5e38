package multiscan

import (
	"context"

	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/pagination"
)

// Repository defines the interface for multi-scan persistence.
type Repository interface {
	// Create creates a new multi-scan record.
	Create(ctx context.Context, ms *MultiScan) error

	// GetByID retrieves a multi-scan by ID.
	GetByID(ctx context.Context, id shared.ID) (*MultiScan, error)

	// List lists multi-scans with pagination, newest first.
	List(ctx context.Context, page pagination.Pagination) (pagination.Result[*MultiScan], error)

	// Delete deletes a multi-scan record (not its scans).
	Delete(ctx context.Context, id shared.ID) error
}
