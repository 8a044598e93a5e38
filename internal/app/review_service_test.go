package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakwatchio/api/pkg/domain/finding"
	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/logger"
)

type reviewFixture struct {
	service  *ReviewService
	scans    *memScanRepo
	findings *memFindingRepo
}

func newReviewFixture(t *testing.T) (*reviewFixture, *scan.Scan) {
	t.Helper()

	f := &reviewFixture{
		scans:    newMemScanRepo(),
		findings: newMemFindingRepo(),
	}
	log := logger.NewNop()
	f.service = NewReviewService(f.findings, NewCounterService(f.scans, f.findings, log), log)

	sc, err := scan.NewScan("payments", scan.RefTypeBranch, "main", "")
	require.NoError(t, err)
	require.NoError(t, f.scans.Create(context.Background(), sc))
	return f, sc
}

func (f *reviewFixture) seedFinding(t *testing.T, scanID shared.ID, path string, line int, value string) *finding.Finding {
	t.Helper()

	fd, err := finding.New(scanID, path, line, value, "Generic Token", finding.SeverityHigh, 0.9, "")
	require.NoError(t, err)
	require.NoError(t, f.findings.CreateBatch(context.Background(), []*finding.Finding{fd}))
	return fd
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm keeps the finding counted", func(t *testing.T) {
		f, sc := newReviewFixture(t)
		fd := f.seedFinding(t, sc.ID, "src/a.go", 7, "tok_1")

		updated, err := f.service.UpdateStatus(ctx, fd.ID.String(), UpdateStatusInput{
			Status: "Confirmed", Reviewer: "alice",
		})
		require.NoError(t, err)
		assert.Equal(t, finding.StatusConfirmed, updated.Status)

		stored, _ := f.scans.GetByID(ctx, sc.ID)
		assert.Equal(t, 1, stored.HighCount)
	})

	t.Run("refute removes the finding from the counters", func(t *testing.T) {
		f, sc := newReviewFixture(t)
		fd := f.seedFinding(t, sc.ID, "src/a.go", 7, "tok_1")
		f.seedFinding(t, sc.ID, "src/b.go", 3, "tok_2")

		updated, err := f.service.UpdateStatus(ctx, fd.ID.String(), UpdateStatusInput{
			Status: "Refuted", Reviewer: "alice", Comment: "test fixture",
		})
		require.NoError(t, err)
		assert.True(t, updated.IsException)
		assert.Equal(t, "test fixture", updated.ExceptionComment)

		stored, _ := f.scans.GetByID(ctx, sc.ID)
		assert.Equal(t, 1, stored.HighCount)
	})

	t.Run("clearing a decision counts the finding again", func(t *testing.T) {
		f, sc := newReviewFixture(t)
		fd := f.seedFinding(t, sc.ID, "src/a.go", 7, "tok_1")

		_, err := f.service.UpdateStatus(ctx, fd.ID.String(), UpdateStatusInput{
			Status: "Refuted", Reviewer: "alice",
		})
		require.NoError(t, err)

		updated, err := f.service.UpdateStatus(ctx, fd.ID.String(), UpdateStatusInput{
			Status: "No status", Reviewer: "alice",
		})
		require.NoError(t, err)
		assert.Equal(t, finding.StatusNone, updated.Status)

		stored, _ := f.scans.GetByID(ctx, sc.ID)
		assert.Equal(t, 1, stored.HighCount)
	})

	t.Run("invalid status is rejected", func(t *testing.T) {
		f, sc := newReviewFixture(t)
		fd := f.seedFinding(t, sc.ID, "src/a.go", 7, "tok_1")

		_, err := f.service.UpdateStatus(ctx, fd.ID.String(), UpdateStatusInput{
			Status: "Maybe", Reviewer: "alice",
		})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("unknown finding id", func(t *testing.T) {
		f, _ := newReviewFixture(t)

		_, err := f.service.UpdateStatus(ctx, shared.NewID().String(), UpdateStatusInput{
			Status: "Confirmed", Reviewer: "alice",
		})
		assert.True(t, shared.IsNotFound(err))

		_, err = f.service.UpdateStatus(ctx, "not-a-uuid", UpdateStatusInput{
			Status: "Confirmed", Reviewer: "alice",
		})
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestBulkUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("applies one decision to several findings", func(t *testing.T) {
		f, sc := newReviewFixture(t)
		a := f.seedFinding(t, sc.ID, "src/a.go", 7, "tok_1")
		b := f.seedFinding(t, sc.ID, "src/b.go", 3, "tok_2")

		updated, err := f.service.BulkUpdateStatus(ctx, BulkUpdateStatusInput{
			FindingIDs: []string{a.ID.String(), b.ID.String()},
			Status:     "Refuted",
			Reviewer:   "alice",
			Comment:    "fixtures",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, updated)

		stored, _ := f.scans.GetByID(ctx, sc.ID)
		assert.Equal(t, 0, stored.HighCount)
	})

	t.Run("missing id fails the batch partway", func(t *testing.T) {
		f, sc := newReviewFixture(t)
		a := f.seedFinding(t, sc.ID, "src/a.go", 7, "tok_1")

		updated, err := f.service.BulkUpdateStatus(ctx, BulkUpdateStatusInput{
			FindingIDs: []string{a.ID.String(), shared.NewID().String()},
			Status:     "Confirmed",
			Reviewer:   "alice",
		})
		require.Error(t, err)
		assert.Equal(t, 1, updated)
	})
}

func TestAddManualFinding(t *testing.T) {
	ctx := context.Background()
	f, sc := newReviewFixture(t)

	fd, err := f.service.AddManualFinding(ctx, sc.ID.String(), AddManualFindingInput{
		FilePath: "docs/setup.md",
		Line:     10,
		Value:    "hardcoded password",
		Severity: "High",
		Reviewer: "alice",
	})
	require.NoError(t, err)

	assert.True(t, fd.IsManual())
	assert.Equal(t, finding.StatusConfirmed, fd.Status)

	stored, _ := f.scans.GetByID(ctx, sc.ID)
	assert.Equal(t, 1, stored.HighCount)
}

func TestDeleteFinding(t *testing.T) {
	ctx := context.Background()
	f, sc := newReviewFixture(t)
	fd := f.seedFinding(t, sc.ID, "src/a.go", 7, "tok_1")

	// Counters reflect the finding before deletion.
	_, err := f.service.UpdateStatus(ctx, fd.ID.String(), UpdateStatusInput{
		Status: "Confirmed", Reviewer: "alice",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteFinding(ctx, fd.ID.String()))

	assert.Equal(t, 0, f.findings.count())
	stored, _ := f.scans.GetByID(ctx, sc.ID)
	assert.Equal(t, 0, stored.HighCount)

	assert.True(t, shared.IsNotFound(f.service.DeleteFinding(ctx, fd.ID.String())))
}
