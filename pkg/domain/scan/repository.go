package scan

import (
	"context"
	"database/sql"
	"time"

	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/pagination"
)

// Repository defines the interface for scan persistence.
//
// Status transitions run as a read-modify-write on a locked row: callers use
// GetByIDTx inside a transaction, mutate the entity, then UpdateTx.
type Repository interface {
	// Create creates a new scan.
	Create(ctx context.Context, sc *Scan) error

	// GetByID retrieves a scan by ID.
	GetByID(ctx context.Context, id shared.ID) (*Scan, error)

	// GetByIDTx retrieves a scan by ID inside tx, locking the row for update.
	GetByIDTx(ctx context.Context, tx *sql.Tx, id shared.ID) (*Scan, error)

	// Update persists all mutable fields of a scan.
	Update(ctx context.Context, sc *Scan) error

	// UpdateTx persists all mutable fields of a scan inside tx.
	UpdateTx(ctx context.Context, tx *sql.Tx, sc *Scan) error

	// List lists scans with filtering and pagination, newest first.
	List(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*Scan], error)

	// ListCompletedByProject returns the most recent completed scans for a
	// project, newest first, excluding the given scan id, up to limit.
	ListCompletedByProject(ctx context.Context, projectName string, exclude shared.ID, limit int) ([]*Scan, error)

	// ListStaleRunning returns running scans started before the cutoff.
	ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*Scan, error)

	// UpdateCounters persists the denormalized severity counters.
	UpdateCounters(ctx context.Context, id shared.ID, high, potential int) error

	// Delete deletes a scan; findings cascade at the storage layer.
	Delete(ctx context.Context, id shared.ID) error
}

// Filter defines the filter options for listing scans.
type Filter struct {
	ProjectName string
	Status      *Status
	Initiator   string
	Since       *time.Time
	Until       *time.Time
}
