package app

import (
	"context"
	"fmt"

	"github.com/leakwatchio/api/pkg/domain/finding"
	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
)

// CounterService maintains the denormalized per-scan severity counters.
// Dashboards read these counters instead of running COUNT aggregations on
// every page view, so every finding mutation must go through Refresh.
type CounterService struct {
	scans    scan.Repository
	findings finding.Repository
	logger   *logger.Logger
}

// NewCounterService creates a new CounterService.
func NewCounterService(scans scan.Repository, findings finding.Repository, log *logger.Logger) *CounterService {
	return &CounterService{
		scans:    scans,
		findings: findings,
		logger:   log.With("service", "counter"),
	}
}

// Refresh recomputes the high/potential counters for a scan from its
// persisted findings. Refuted findings are exceptions and do not count.
func (s *CounterService) Refresh(ctx context.Context, scanID shared.ID) error {
	counts, err := s.findings.CountBySeverity(ctx, scanID)
	if err != nil {
		return fmt.Errorf("failed to count findings: %w", err)
	}

	if err := s.scans.UpdateCounters(ctx, scanID, counts.High, counts.Potential); err != nil {
		return fmt.Errorf("failed to persist counters: %w", err)
	}

	s.logger.Debug("counters refreshed",
		"scan_id", scanID.String(),
		"high", counts.High,
		"potential", counts.Potential,
	)
	return nil
}
