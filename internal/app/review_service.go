package app

import (
	"context"
	"fmt"

	"github.com/leakwatchio/api/pkg/domain/finding"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
	"github.com/leakwatchio/api/pkg/pagination"
)

// ReviewService applies human triage decisions to findings. Every mutation
// refreshes the scan's denormalized counters, which are the sole source of
// truth dashboards read.
type ReviewService struct {
	findings finding.Repository
	counters *CounterService
	logger   *logger.Logger
}

// NewReviewService creates a new ReviewService.
func NewReviewService(findings finding.Repository, counters *CounterService, log *logger.Logger) *ReviewService {
	return &ReviewService{
		findings: findings,
		counters: counters,
		logger:   log.With("service", "review"),
	}
}

// UpdateStatusInput represents a single review decision.
type UpdateStatusInput struct {
	Status   string `json:"status" validate:"required,review_status"`
	Comment  string `json:"comment" validate:"max=2000"`
	Reviewer string `json:"reviewer" validate:"required,min=1,max=255"`
}

// UpdateStatus applies a review decision to one finding.
func (s *ReviewService) UpdateStatus(ctx context.Context, findingID string, input UpdateStatusInput) (*finding.Finding, error) {
	id, err := shared.IDFromString(findingID)
	if err != nil {
		return nil, shared.ErrNotFound
	}

	f, err := s.findings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyDecision(f, finding.ReviewStatus(input.Status), input.Reviewer, input.Comment); err != nil {
		return nil, err
	}
	if err := s.findings.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to update finding: %w", err)
	}

	if err := s.counters.Refresh(ctx, f.ScanID); err != nil {
		return nil, err
	}

	s.logger.Info("finding reviewed",
		"finding_id", f.ID.String(),
		"scan_id", f.ScanID.String(),
		"status", f.Status.String(),
		"reviewer", input.Reviewer,
	)
	return f, nil
}

// BulkUpdateStatusInput applies one decision to a set of findings.
type BulkUpdateStatusInput struct {
	FindingIDs []string `json:"finding_ids" validate:"required,min=1,max=500,dive,uuid"`
	Status     string   `json:"status" validate:"required,review_status"`
	Comment    string   `json:"comment" validate:"max=2000"`
	Reviewer   string   `json:"reviewer" validate:"required,min=1,max=255"`
}

// BulkUpdateStatus applies one review decision to several findings. Updates
// are per-finding; a missing id fails the batch after the preceding updates
// have already been applied, so callers should treat errors as partial.
func (s *ReviewService) BulkUpdateStatus(ctx context.Context, input BulkUpdateStatusInput) (int, error) {
	touched := make(map[shared.ID]bool)
	updated := 0

	for _, raw := range input.FindingIDs {
		id, err := shared.IDFromString(raw)
		if err != nil {
			return updated, shared.ErrNotFound
		}
		f, err := s.findings.GetByID(ctx, id)
		if err != nil {
			return updated, err
		}
		if err := applyDecision(f, finding.ReviewStatus(input.Status), input.Reviewer, input.Comment); err != nil {
			return updated, err
		}
		if err := s.findings.Update(ctx, f); err != nil {
			return updated, fmt.Errorf("failed to update finding: %w", err)
		}
		touched[f.ScanID] = true
		updated++
	}

	for scanID := range touched {
		if err := s.counters.Refresh(ctx, scanID); err != nil {
			return updated, err
		}
	}

	s.logger.Info("bulk review applied",
		"findings", updated,
		"status", input.Status,
		"reviewer", input.Reviewer,
	)
	return updated, nil
}

// AddManualFindingInput represents a human-asserted finding.
type AddManualFindingInput struct {
	FilePath string `json:"file_path" validate:"required,min=1,max=1024"`
	Line     int    `json:"line" validate:"min=0"`
	Value    string `json:"value" validate:"required,min=1"`
	Severity string `json:"severity" validate:"required,severity"`
	Reviewer string `json:"reviewer" validate:"required,min=1,max=255"`
}

// AddManualFinding attaches a human-entered finding to a scan. It carries the
// fixed manual marker so reconciliation keeps it alive across rescans.
func (s *ReviewService) AddManualFinding(ctx context.Context, scanID string, input AddManualFindingInput) (*finding.Finding, error) {
	id, err := shared.IDFromString(scanID)
	if err != nil {
		return nil, shared.ErrNotFound
	}

	f, err := finding.NewManual(id, input.FilePath, input.Line, input.Value,
		finding.Severity(input.Severity), input.Reviewer)
	if err != nil {
		return nil, err
	}

	if err := s.findings.CreateBatch(ctx, []*finding.Finding{f}); err != nil {
		return nil, fmt.Errorf("failed to create manual finding: %w", err)
	}

	if err := s.counters.Refresh(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("manual finding added",
		"finding_id", f.ID.String(),
		"scan_id", id.String(),
		"reviewer", input.Reviewer,
	)
	return f, nil
}

// DeleteFinding removes one finding and refreshes its scan's counters.
func (s *ReviewService) DeleteFinding(ctx context.Context, findingID string) error {
	id, err := shared.IDFromString(findingID)
	if err != nil {
		return shared.ErrNotFound
	}

	f, err := s.findings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.findings.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.counters.Refresh(ctx, f.ScanID); err != nil {
		return err
	}

	s.logger.Info("finding deleted", "finding_id", id.String(), "scan_id", f.ScanID.String())
	return nil
}

// GetFinding retrieves a finding by ID.
func (s *ReviewService) GetFinding(ctx context.Context, findingID string) (*finding.Finding, error) {
	id, err := shared.IDFromString(findingID)
	if err != nil {
		return nil, shared.ErrNotFound
	}
	return s.findings.GetByID(ctx, id)
}

// ListFindings lists a scan's findings with pagination.
func (s *ReviewService) ListFindings(ctx context.Context, scanID string, page pagination.Pagination) (pagination.Result[*finding.Finding], error) {
	id, err := shared.IDFromString(scanID)
	if err != nil {
		return pagination.Result[*finding.Finding]{}, shared.ErrNotFound
	}
	return s.findings.ListByScanID(ctx, id, page)
}

// applyDecision maps a review status onto the matching entity transition.
func applyDecision(f *finding.Finding, status finding.ReviewStatus, reviewer, comment string) error {
	switch status {
	case finding.StatusConfirmed:
		return f.Confirm(reviewer)
	case finding.StatusRefuted:
		return f.Refute(reviewer, comment)
	case finding.StatusNone:
		f.ClearStatus()
		return nil
	default:
		return shared.NewDomainError("VALIDATION", "invalid review status", shared.ErrValidation)
	}
}
