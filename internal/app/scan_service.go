package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/leakwatchio/api/internal/infra/engine"
	"github.com/leakwatchio/api/internal/metrics"
	"github.com/leakwatchio/api/pkg/domain/multiscan"
	"github.com/leakwatchio/api/pkg/domain/project"
	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
	"github.com/leakwatchio/api/pkg/pagination"
)

// Failure messages stored on scans when dispatch goes wrong. The UI shows
// these verbatim, so they stay short and human-readable.
const (
	msgEngineUnavailable = "Detection engine unavailable"
	msgResolveFailed     = "Failed to resolve commit"
	msgQueueFull         = "Queue full"
)

// DetectionEngine is the outbound contract to the external detection engine.
type DetectionEngine interface {
	Health(ctx context.Context) error
	SubmitScan(ctx context.Context, req engine.ScanRequest) (*engine.ScanResponse, error)
	SubmitMultiScan(ctx context.Context, req engine.MultiScanRequest) (*engine.MultiScanResponse, error)
}

// ScanService dispatches scans to the detection engine and manages scan
// records through their lifecycle.
type ScanService struct {
	scans       scan.Repository
	multiScans  multiscan.Repository
	projects    project.Repository
	findings    findingDeleter
	engine      DetectionEngine
	callbackURL string
	logger      *logger.Logger
}

// findingDeleter is the slice of finding.Repository scan deletion needs.
type findingDeleter interface {
	DeleteByScanID(ctx context.Context, scanID shared.ID) error
}

// NewScanService creates a new ScanService. callbackBaseURL is the externally
// reachable base URL of this service, used to build per-scan callback URLs.
func NewScanService(
	scans scan.Repository,
	multiScans multiscan.Repository,
	projects project.Repository,
	findings findingDeleter,
	eng DetectionEngine,
	callbackBaseURL string,
	log *logger.Logger,
) *ScanService {
	return &ScanService{
		scans:       scans,
		multiScans:  multiScans,
		projects:    projects,
		findings:    findings,
		engine:      eng,
		callbackURL: callbackBaseURL,
		logger:      log.With("service", "scan"),
	}
}

// StartScanInput represents the input for starting a single scan.
type StartScanInput struct {
	ProjectName string `json:"project_name" validate:"required,min=1,max=255"`
	RefType     string `json:"ref_type" validate:"required,ref_type"`
	Ref         string `json:"ref" validate:"required,min=1,max=255"`
	Initiator   string `json:"initiator" validate:"max=255"`
}

// StartScan creates a scan record and dispatches it to the detection engine.
// Dispatch failures are surfaced synchronously and recorded on the scan.
func (s *ScanService) StartScan(ctx context.Context, input StartScanInput) (*scan.Scan, error) {
	proj, err := s.projects.GetByName(ctx, input.ProjectName)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewDomainError("PROJECT_NOT_FOUND", "project does not exist", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up project: %w", err)
	}

	sc, err := scan.NewScan(proj.Name, scan.RefType(input.RefType), input.Ref, input.Initiator)
	if err != nil {
		return nil, err
	}
	if err := s.scans.Create(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to create scan: %w", err)
	}

	s.logger.Info("scan created",
		"scan_id", sc.ID.String(),
		"project", proj.Name,
		"ref_type", sc.RefType.String(),
		"ref", sc.Ref,
	)

	if err := s.engine.Health(ctx); err != nil {
		metrics.ScansDispatchedTotal.WithLabelValues("unavailable").Inc()
		s.failScan(ctx, sc, msgEngineUnavailable)
		return sc, shared.NewDomainError("ENGINE_UNAVAILABLE", msgEngineUnavailable, shared.ErrInternal)
	}

	resp, err := s.engine.SubmitScan(ctx, engine.ScanRequest{
		ProjectName: proj.Name,
		RepoURL:     proj.RepoURL,
		RefType:     sc.RefType.String(),
		Ref:         sc.Ref,
		CallbackURL: s.buildCallbackURL(proj.Name, sc.ID),
	})
	if err != nil {
		outcome, message := dispatchFailure(err)
		metrics.ScansDispatchedTotal.WithLabelValues(outcome).Inc()
		s.failScan(ctx, sc, message)
		return sc, err
	}

	if err := sc.MarkRunning(resp.Ref); err != nil {
		return sc, err
	}
	if err := s.scans.Update(ctx, sc); err != nil {
		return sc, fmt.Errorf("failed to mark scan running: %w", err)
	}

	metrics.ScansDispatchedTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("scan dispatched", "scan_id", sc.ID.String(), "resolved_ref", sc.Ref)
	return sc, nil
}

// MultiScanItemInput is one repository+ref entry in a multi-scan request.
type MultiScanItemInput struct {
	ProjectName string `json:"project_name" validate:"required,min=1,max=255"`
	RefType     string `json:"ref_type" validate:"required,ref_type"`
	Ref         string `json:"ref" validate:"required,min=1,max=255"`
}

// StartMultiScanInput represents the input for starting a batched scan.
type StartMultiScanInput struct {
	Name      string               `json:"name" validate:"required,min=1,max=255"`
	Items     []MultiScanItemInput `json:"items" validate:"required,min=1,max=10,dive"`
	Initiator string               `json:"initiator" validate:"max=255"`
}

// StartMultiScan fans a batch of repository+ref requests out into individual
// scans sharing one batch record, dispatched in a single engine call. The
// batch record only survives if the whole dispatch succeeded; the scans stay
// behind individually on every failure path.
func (s *ScanService) StartMultiScan(ctx context.Context, input StartMultiScanInput) (*multiscan.MultiScan, []*scan.Scan, error) {
	if len(input.Items) < multiscan.MinItems || len(input.Items) > multiscan.MaxItems {
		return nil, nil, shared.NewDomainError("VALIDATION", "multi-scan requires 1-10 items", shared.ErrValidation)
	}

	scans := make([]*scan.Scan, 0, len(input.Items))
	repositories := make([]engine.ScanRequest, 0, len(input.Items))
	for _, item := range input.Items {
		proj, err := s.projects.GetByName(ctx, item.ProjectName)
		if err != nil {
			if shared.IsNotFound(err) {
				return nil, nil, shared.NewDomainError("PROJECT_NOT_FOUND",
					fmt.Sprintf("project %q does not exist", item.ProjectName), shared.ErrNotFound)
			}
			return nil, nil, fmt.Errorf("failed to look up project: %w", err)
		}

		sc, err := scan.NewScan(proj.Name, scan.RefType(item.RefType), item.Ref, input.Initiator)
		if err != nil {
			return nil, nil, err
		}
		if err := s.scans.Create(ctx, sc); err != nil {
			return nil, nil, fmt.Errorf("failed to create scan: %w", err)
		}
		scans = append(scans, sc)
		repositories = append(repositories, engine.ScanRequest{
			ProjectName: proj.Name,
			RepoURL:     proj.RepoURL,
			RefType:     sc.RefType.String(),
			Ref:         sc.Ref,
			CallbackURL: s.buildCallbackURL(proj.Name, sc.ID),
		})
	}

	scanIDs := make([]shared.ID, len(scans))
	for i, sc := range scans {
		scanIDs[i] = sc.ID
	}
	batch, err := multiscan.New(input.Name, scanIDs, input.Initiator)
	if err != nil {
		return nil, nil, err
	}
	if err := s.multiScans.Create(ctx, batch); err != nil {
		return nil, nil, fmt.Errorf("failed to create multi-scan: %w", err)
	}

	s.logger.Info("multi-scan created",
		"multi_scan_id", batch.ID.String(),
		"name", batch.Name,
		"scans", len(scans),
	)

	if err := s.engine.Health(ctx); err != nil {
		metrics.MultiScansDispatchedTotal.WithLabelValues("unavailable").Inc()
		s.failBatch(ctx, scans, msgEngineUnavailable)
		s.discardBatch(ctx, batch)
		return nil, scans, shared.NewDomainError("ENGINE_UNAVAILABLE", msgEngineUnavailable, shared.ErrInternal)
	}

	resp, err := s.engine.SubmitMultiScan(ctx, engine.MultiScanRequest{Repositories: repositories})
	if err != nil {
		outcome, message := dispatchFailure(err)
		metrics.MultiScansDispatchedTotal.WithLabelValues(outcome).Inc()
		s.failBatch(ctx, scans, message)
		s.discardBatch(ctx, batch)
		return nil, scans, err
	}

	switch resp.Status {
	case engine.StatusAccepted:
		for i, sc := range scans {
			resolvedRef := ""
			commit := ""
			if i < len(resp.Data) {
				resolvedRef = resp.Data[i].Ref
				commit = resp.Data[i].Commit
			}
			if err := sc.MarkRunning(resolvedRef); err != nil {
				return nil, scans, err
			}
			sc.SetRepoCommit(commit)
			if err := s.scans.Update(ctx, sc); err != nil {
				return nil, scans, fmt.Errorf("failed to mark scan running: %w", err)
			}
		}
		metrics.MultiScansDispatchedTotal.WithLabelValues("accepted").Inc()
		s.logger.Info("multi-scan dispatched", "multi_scan_id", batch.ID.String())
		return batch, scans, nil

	case engine.StatusValidationFailed:
		// Only the unresolvable items fail; the rest stay pending untouched.
		// The batch did not proceed, so its tracking record goes away.
		for i, sc := range scans {
			if i < len(resp.Data) && resp.Data[i].Resolved() {
				continue
			}
			s.failScan(ctx, sc, msgResolveFailed)
		}
		metrics.MultiScansDispatchedTotal.WithLabelValues("validation_failed").Inc()
		s.discardBatch(ctx, batch)
		return nil, scans, shared.NewDomainError("ENGINE_REJECTED", msgResolveFailed, shared.ErrInvalidInput)

	default:
		// Capacity or any other engine-side rejection fails the whole batch.
		metrics.MultiScansDispatchedTotal.WithLabelValues("rejected").Inc()
		s.failBatch(ctx, scans, msgQueueFull)
		s.discardBatch(ctx, batch)
		return nil, scans, shared.NewDomainError("ENGINE_REJECTED", msgQueueFull, shared.ErrConflict)
	}
}

// GetScan retrieves a scan by ID.
func (s *ScanService) GetScan(ctx context.Context, scanID string) (*scan.Scan, error) {
	id, err := shared.IDFromString(scanID)
	if err != nil {
		return nil, shared.ErrNotFound
	}
	return s.scans.GetByID(ctx, id)
}

// ListScans lists scans with filtering and pagination.
func (s *ScanService) ListScans(ctx context.Context, filter scan.Filter, page pagination.Pagination) (pagination.Result[*scan.Scan], error) {
	return s.scans.List(ctx, filter, page)
}

// DeleteScan removes a scan and all of its findings.
func (s *ScanService) DeleteScan(ctx context.Context, scanID string) error {
	id, err := shared.IDFromString(scanID)
	if err != nil {
		return shared.ErrNotFound
	}
	if err := s.findings.DeleteByScanID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete scan findings: %w", err)
	}
	if err := s.scans.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("scan deleted", "scan_id", id.String())
	return nil
}

// GetMultiScan retrieves a multi-scan batch record by ID.
func (s *ScanService) GetMultiScan(ctx context.Context, multiScanID string) (*multiscan.MultiScan, error) {
	id, err := shared.IDFromString(multiScanID)
	if err != nil {
		return nil, shared.ErrNotFound
	}
	return s.multiScans.GetByID(ctx, id)
}

// ListMultiScans lists multi-scan batch records with pagination.
func (s *ScanService) ListMultiScans(ctx context.Context, page pagination.Pagination) (pagination.Result[*multiscan.MultiScan], error) {
	return s.multiScans.List(ctx, page)
}

// buildCallbackURL constructs the results callback URL embedded in every
// dispatch, shaped .../get_results/{project_name}/{scan_id}.
func (s *ScanService) buildCallbackURL(projectName string, scanID shared.ID) string {
	return fmt.Sprintf("%s/api/v1/get_results/%s/%s", s.callbackURL, projectName, scanID.String())
}

// failScan marks a scan failed and persists it, logging rather than failing
// when persistence goes wrong: the dispatch error is what the caller needs.
func (s *ScanService) failScan(ctx context.Context, sc *scan.Scan, message string) {
	if err := sc.MarkFailed(message); err != nil {
		s.logger.Warn("cannot fail scan", "scan_id", sc.ID.String(), "error", err)
		return
	}
	if err := s.scans.Update(ctx, sc); err != nil {
		s.logger.Error("failed to persist failed scan", "scan_id", sc.ID.String(), "error", err)
	}
}

func (s *ScanService) failBatch(ctx context.Context, scans []*scan.Scan, message string) {
	for _, sc := range scans {
		s.failScan(ctx, sc, message)
	}
}

// discardBatch deletes a multi-scan record whose dispatch did not fully
// succeed, so tracking only ever reflects real in-flight work.
func (s *ScanService) discardBatch(ctx context.Context, batch *multiscan.MultiScan) {
	if err := s.multiScans.Delete(ctx, batch.ID); err != nil {
		s.logger.Error("failed to discard multi-scan", "multi_scan_id", batch.ID.String(), "error", err)
	}
}

// dispatchFailure classifies an engine dispatch error into a metric outcome
// and the message stored on the scan.
func dispatchFailure(err error) (outcome, message string) {
	var rejection *engine.RejectionError
	switch {
	case errors.As(err, &rejection):
		return "rejected", rejection.Message
	case errors.Is(err, engine.ErrTimeout):
		return "timeout", "Detection engine timed out"
	default:
		return "unavailable", msgEngineUnavailable
	}
}
