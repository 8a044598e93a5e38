package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leakwatchio/api/internal/config"
	"github.com/leakwatchio/api/internal/metrics"
	"github.com/leakwatchio/api/pkg/domain/finding"
	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
)

// ReconcileService replaces a scan's finding set with freshly reported
// results, carrying forward human review decisions from recent scans of the
// same project. It runs as a background job after a "completed" callback.
type ReconcileService struct {
	db       Transactor
	scans    scan.Repository
	findings finding.Repository
	counters *CounterService
	cfg      config.ReconcileConfig
	logger   *logger.Logger
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(
	db Transactor,
	scans scan.Repository,
	findings finding.Repository,
	counters *CounterService,
	cfg config.ReconcileConfig,
	log *logger.Logger,
) *ReconcileService {
	return &ReconcileService{
		db:       db,
		scans:    scans,
		findings: findings,
		counters: counters,
		cfg:      cfg,
		logger:   log.With("service", "reconcile"),
	}
}

// ProcessResults reconciles one completed payload against a scan. Re-delivery
// is safe: the finding set is deleted and rebuilt from the payload every time,
// so running twice with the same payload produces the same final state.
func (s *ReconcileService) ProcessResults(ctx context.Context, scanID shared.ID, results ScanResults) error {
	start := time.Now()
	log := s.logger.With("scan_id", scanID.String())

	sc, err := s.scans.GetByID(ctx, scanID)
	if err != nil {
		return err
	}
	// A late payload never resurrects a failed or timed-out scan. Re-delivery
	// against an already-completed scan replays the replace for idempotency.
	if sc.IsFinished() && sc.Status != scan.StatusCompleted {
		log.Info("completed payload for finished scan ignored", "status", sc.Status.String())
		return nil
	}

	if err := s.reconcile(ctx, sc, results, log); err != nil {
		log.Error("reconciliation failed", "error", err)
		s.markFailed(ctx, scanID, err)
		return err
	}

	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	log.Info("reconciliation finished",
		"findings", len(results.Results),
		"duration", time.Since(start),
	)
	return nil
}

func (s *ReconcileService) reconcile(ctx context.Context, sc *scan.Scan, results ScanResults, log *logger.Logger) error {
	// Final metadata lands first so it survives even if the finding rebuild
	// below has to be retried. The write happens under the row lock with a
	// status re-check: the sweeper may have reclaimed the scan since the
	// initial read, and a whole-row update from that stale read would drag
	// the status back to running.
	superseded := false
	if err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		locked, err := s.scans.GetByIDTx(ctx, tx, sc.ID)
		if err != nil {
			return err
		}
		if locked.IsFinished() && locked.Status != scan.StatusCompleted {
			superseded = true
			return nil
		}
		locked.SetRepoCommit(results.RepoCommit)
		locked.SetProgress(results.AllFiles, results.FilesExcluded, results.SkippedFiles)
		locked.SetDetected(results.DetectedLanguages, results.DetectedFrameworks)
		return s.scans.UpdateTx(ctx, tx, locked)
	}); err != nil {
		return fmt.Errorf("failed to persist scan metadata: %w", err)
	}
	if superseded {
		log.Info("scan finished while reconciling, payload ignored")
		return nil
	}

	history, err := s.scans.ListCompletedByProject(ctx, sc.ProjectName, sc.ID, s.cfg.HistoryLookback)
	if err != nil {
		return fmt.Errorf("failed to load scan history: %w", err)
	}
	decisions, err := s.buildDecisionIndex(ctx, history)
	if err != nil {
		return err
	}

	// A clean slate makes re-delivery safe: partially written findings from a
	// failed attempt are wiped before the next one.
	if err := s.findings.DeleteByScanID(ctx, sc.ID); err != nil {
		return fmt.Errorf("failed to clear previous findings: %w", err)
	}

	fresh := make([]*finding.Finding, 0, len(results.Results))
	seen := make(map[finding.Identity]bool, len(results.Results))
	for _, item := range results.Results {
		f, err := finding.New(sc.ID, item.Path, item.Line, item.Secret, item.Type,
			severityOf(item.Severity), item.Confidence, item.Context)
		if err != nil {
			log.Warn("skipping malformed result item", "path", item.Path, "error", err)
			continue
		}
		if prior, ok := decisions[f.Identity()]; ok {
			f.InheritDecision(prior)
			metrics.FindingsReconciledTotal.WithLabelValues(prior.Status.String()).Inc()
		} else {
			metrics.FindingsReconciledTotal.WithLabelValues(finding.StatusNone.String()).Inc()
		}
		fresh = append(fresh, f)
		seen[f.Identity()] = true
	}

	manual, err := s.carryManualFindings(ctx, sc, history, seen)
	if err != nil {
		return err
	}
	fresh = append(fresh, manual...)

	if err := s.insertBatched(ctx, fresh); err != nil {
		return fmt.Errorf("failed to insert findings: %w", err)
	}

	if err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		locked, err := s.scans.GetByIDTx(ctx, tx, sc.ID)
		if err != nil {
			return err
		}
		// Completed means an earlier delivery already landed; any other
		// terminal status means the sweeper or an error payload won the race.
		// Both leave the row alone.
		if locked.Status != scan.StatusRunning {
			return nil
		}
		if err := locked.MarkCompleted(); err != nil {
			return err
		}
		return s.scans.UpdateTx(ctx, tx, locked)
	}); err != nil {
		return fmt.Errorf("failed to complete scan: %w", err)
	}

	return s.counters.Refresh(ctx, sc.ID)
}

// buildDecisionIndex collects reviewed findings from recent completed scans,
// most recent first, keeping only the first match per identity tuple.
// Decisions older than the lookback window are not carried forward. History
// scans are read concurrently; the merge stays ordered by recency.
func (s *ReconcileService) buildDecisionIndex(ctx context.Context, history []*scan.Scan) (map[finding.Identity]*finding.Finding, error) {
	reviewed := make([][]*finding.Finding, len(history))

	g, gctx := errgroup.WithContext(ctx)
	for i, prev := range history {
		g.Go(func() error {
			fs, err := s.findings.ListReviewedByScanID(gctx, prev.ID)
			if err != nil {
				return fmt.Errorf("failed to load reviewed findings: %w", err)
			}
			reviewed[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	decisions := make(map[finding.Identity]*finding.Finding)
	for _, fs := range reviewed {
		for _, f := range fs {
			key := f.Identity()
			if _, exists := decisions[key]; !exists {
				decisions[key] = f
			}
		}
	}
	return decisions, nil
}

// carryManualFindings re-inserts human-asserted findings from the immediately
// preceding completed scan. The engine never re-detects them, so without this
// they would vanish on every rescan.
func (s *ReconcileService) carryManualFindings(ctx context.Context, sc *scan.Scan, history []*scan.Scan, seen map[finding.Identity]bool) ([]*finding.Finding, error) {
	if len(history) == 0 {
		return nil, nil
	}
	previous := history[0]

	manual, err := s.findings.ListManualByScanID(ctx, previous.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load manual findings: %w", err)
	}

	var carried []*finding.Finding
	for _, f := range manual {
		if seen[f.Identity()] {
			continue
		}
		carried = append(carried, f.CloneFor(sc.ID))
		metrics.FindingsReconciledTotal.WithLabelValues("manual").Inc()
	}
	return carried, nil
}

// insertBatched writes findings in fixed-size batches to bound memory and
// transaction size for very large result sets.
func (s *ReconcileService) insertBatched(ctx context.Context, findings []*finding.Finding) error {
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	for start := 0; start < len(findings); start += batch {
		end := start + batch
		if end > len(findings) {
			end = len(findings)
		}
		if err := s.findings.CreateBatch(ctx, findings[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// markFailed records a reconciliation failure on the scan, best effort.
func (s *ReconcileService) markFailed(ctx context.Context, scanID shared.ID, cause error) {
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		sc, err := s.scans.GetByIDTx(ctx, tx, scanID)
		if err != nil {
			return err
		}
		if sc.IsFinished() {
			return nil
		}
		if err := sc.MarkFailed(fmt.Sprintf("Reconciliation failed: %v", cause)); err != nil {
			return err
		}
		return s.scans.UpdateTx(ctx, tx, sc)
	})
	if err != nil {
		s.logger.Error("failed to record reconciliation failure",
			"scan_id", scanID.String(),
			"error", err,
		)
	}
}
