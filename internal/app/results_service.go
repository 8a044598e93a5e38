package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leakwatchio/api/internal/metrics"
	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
)

// ReconcileEnqueuer schedules background reconciliation of a completed
// results payload.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, scanID shared.ID, results ScanResults) error
}

// Transactor runs a function inside a database transaction. Implemented by
// the postgres connection wrapper.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// ResultsService handles result callbacks from the detection engine. The
// response to the engine is decoupled from reconciliation: a "completed"
// payload is acknowledged as soon as the background work is scheduled.
type ResultsService struct {
	db       Transactor
	scans    scan.Repository
	enqueuer ReconcileEnqueuer
	logger   *logger.Logger
}

// NewResultsService creates a new ResultsService.
func NewResultsService(db Transactor, scans scan.Repository, enqueuer ReconcileEnqueuer, log *logger.Logger) *ResultsService {
	return &ResultsService{
		db:       db,
		scans:    scans,
		enqueuer: enqueuer,
		logger:   log.With("service", "results"),
	}
}

// ReceiveResults processes one callback payload for a scan. Duplicate
// callbacks for an already-terminal scan are accepted idempotently but never
// resurrect the scan.
func (s *ResultsService) ReceiveResults(ctx context.Context, projectName, scanID string, results ScanResults) error {
	id, err := shared.IDFromString(scanID)
	if err != nil {
		return shared.ErrNotFound
	}

	sc, err := s.scans.GetByID(ctx, id)
	if err != nil {
		return err
	}
	// The callback URL embeds both identifiers; a mismatch means the engine
	// is posting against the wrong scan.
	if sc.ProjectName != projectName {
		return shared.ErrNotFound
	}

	metrics.CallbacksReceivedTotal.WithLabelValues(results.Status.String()).Inc()

	log := s.logger.WithContext(ctx).With("scan_id", id.String(), "project", projectName)

	switch results.Status {
	case ResultStatusError:
		return s.handleError(ctx, id, results, log)
	case ResultStatusPartial:
		return s.handlePartial(ctx, id, results, log)
	case ResultStatusCompleted:
		log.Info("completed payload received, scheduling reconciliation",
			"findings", len(results.Results),
		)
		if err := s.enqueuer.EnqueueReconcile(ctx, id, results); err != nil {
			return fmt.Errorf("failed to schedule reconciliation: %w", err)
		}
		return nil
	default:
		return shared.NewDomainError("INVALID_STATUS",
			fmt.Sprintf("unrecognized result status %q", results.Status), shared.ErrInvalidInput)
	}
}

// handleError marks the scan failed with the engine-reported message. No
// background work is needed for an error payload.
func (s *ResultsService) handleError(ctx context.Context, id shared.ID, results ScanResults, log *logger.Logger) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		sc, err := s.scans.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if sc.IsFinished() {
			log.Info("error payload for finished scan ignored", "status", sc.Status.String())
			return nil
		}
		if err := sc.MarkFailed(results.Message); err != nil {
			return err
		}
		if err := s.scans.UpdateTx(ctx, tx, sc); err != nil {
			return err
		}
		log.Info("scan failed by engine", "message", results.Message)
		return nil
	})
}

// handlePartial overwrites the progress counters of a still-running scan.
// Partial payloads never create or delete findings.
func (s *ResultsService) handlePartial(ctx context.Context, id shared.ID, results ScanResults, log *logger.Logger) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		sc, err := s.scans.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if sc.Status != scan.StatusRunning {
			log.Info("partial payload for non-running scan ignored", "status", sc.Status.String())
			return nil
		}
		sc.SetProgress(results.AllFiles, results.FilesExcluded, results.SkippedFiles)
		if err := s.scans.UpdateTx(ctx, tx, sc); err != nil {
			return err
		}
		log.Debug("scan progress updated",
			"files_scanned", results.AllFiles,
			"files_excluded", results.FilesExcluded,
		)
		return nil
	})
}
