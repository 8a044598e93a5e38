package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/leakwatchio/api/internal/config"
	"github.com/leakwatchio/api/internal/metrics"
	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
)

// ScanSweeper periodically reclassifies stuck running scans as timed out.
// It is a safety net against lost callbacks, not a cancellation mechanism:
// the engine is never notified and keeps running regardless.
//
// The sweeper is an owned object with an explicit start/stop lifecycle so
// tests can run multiple independent instances.
type ScanSweeper struct {
	db     Transactor
	scans  scan.Repository
	cfg    config.SweeperConfig
	logger *logger.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewScanSweeper creates a new ScanSweeper.
func NewScanSweeper(db Transactor, scans scan.Repository, cfg config.SweeperConfig, log *logger.Logger) *ScanSweeper {
	return &ScanSweeper{
		db:     db,
		scans:  scans,
		cfg:    cfg,
		logger: log.With("component", "scan_sweeper"),
		stopCh: make(chan struct{}),
	}
}

// Start starts the sweeper loop.
func (s *ScanSweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting scan sweeper",
		"interval", s.cfg.Interval,
		"stale_after", s.cfg.StaleAfter,
	)

	s.wg.Add(1)
	go s.loop()
}

// Stop stops the sweeper gracefully.
func (s *ScanSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scan sweeper stopped")
}

func (s *ScanSweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
			s.Sweep(ctx)
			cancel()
		}
	}
}

// Sweep runs one pass: every running scan whose start time is older than the
// staleness threshold moves to timeout. Exported so tests and the admin CLI
// can trigger a pass without the ticker.
func (s *ScanSweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.StaleAfter)

	stale, err := s.scans.ListStaleRunning(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to list stale scans", "error", err)
		return
	}

	for _, sc := range stale {
		if err := s.timeoutScan(ctx, sc.ID); err != nil {
			s.logger.Error("failed to time out scan", "scan_id", sc.ID.String(), "error", err)
			continue
		}
		metrics.ScansTimedOutTotal.Inc()
		s.logger.Warn("scan timed out",
			"scan_id", sc.ID.String(),
			"project", sc.ProjectName,
			"started_at", sc.StartedAt,
		)
	}
}

// timeoutScan re-reads the scan under lock before transitioning: a callback
// may have finished it between the list query and this transaction.
func (s *ScanSweeper) timeoutScan(ctx context.Context, scanID shared.ID) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		sc, err := s.scans.GetByIDTx(ctx, tx, scanID)
		if err != nil {
			return err
		}
		if sc.Status != scan.StatusRunning {
			return nil
		}
		if err := sc.MarkTimeout(); err != nil {
			return err
		}
		return s.scans.UpdateTx(ctx, tx, sc)
	})
}
