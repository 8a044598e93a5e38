// Package multiscan defines the batch-scan tracking aggregate.
package multiscan

import (
	"time"

	"github.com/leakwatchio/api/pkg/domain/shared"
)

// Batch size bounds for a multi-scan submission.
const (
	MinItems = 1
	MaxItems = 10
)

// MultiScan groups scans submitted together in one engine dispatch. It exists
// for tracking only and carries no lifecycle of its own; the referenced scans
// remain independently lifecycled.
type MultiScan struct {
	ID        shared.ID
	Name      string
	ScanIDs   []shared.ID
	Initiator string
	CreatedAt time.Time
}

// New creates a multi-scan referencing the given scan ids.
func New(name string, scanIDs []shared.ID, initiator string) (*MultiScan, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION", "multi-scan name is required", shared.ErrValidation)
	}
	if len(scanIDs) < MinItems || len(scanIDs) > MaxItems {
		return nil, shared.NewDomainError("VALIDATION", "multi-scan requires 1-10 scans", shared.ErrValidation)
	}
	return &MultiScan{
		ID:        shared.NewID(),
		Name:      name,
		ScanIDs:   scanIDs,
		Initiator: initiator,
		CreatedAt: time.Now(),
	}, nil
}
