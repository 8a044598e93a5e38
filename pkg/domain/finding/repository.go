package finding

import (
	"context"

	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/pagination"
)

// SeverityCounts holds the active (non-exception) finding counts per severity.
type SeverityCounts struct {
	High      int
	Potential int
}

// Repository defines the interface for finding persistence.
type Repository interface {
	// CreateBatch inserts findings in fixed-size chunks to bound transaction
	// size for very large result sets.
	CreateBatch(ctx context.Context, findings []*Finding) error

	// GetByID retrieves a finding by ID.
	GetByID(ctx context.Context, id shared.ID) (*Finding, error)

	// Update persists the review fields of a finding.
	Update(ctx context.Context, f *Finding) error

	// Delete deletes a single finding.
	Delete(ctx context.Context, id shared.ID) error

	// DeleteByScanID deletes all findings of a scan. Reconciliation calls this
	// before re-inserting so a re-delivered payload replaces, never duplicates.
	DeleteByScanID(ctx context.Context, scanID shared.ID) error

	// ListByScanID lists findings of a scan with pagination.
	ListByScanID(ctx context.Context, scanID shared.ID, page pagination.Pagination) (pagination.Result[*Finding], error)

	// ListReviewedByScanID returns findings of a scan carrying a human
	// decision (status other than "No status").
	ListReviewedByScanID(ctx context.Context, scanID shared.ID) ([]*Finding, error)

	// ListManualByScanID returns the manually added findings of a scan.
	ListManualByScanID(ctx context.Context, scanID shared.ID) ([]*Finding, error)

	// CountBySeverity counts non-exception findings per severity for a scan.
	CountBySeverity(ctx context.Context, scanID shared.ID) (SeverityCounts, error)
}
