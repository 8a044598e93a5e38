package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/pagination"
)

// ScanRepository implements scan.Repository using PostgreSQL.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new ScanRepository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `
	id, project_name, ref_type, ref, repo_commit, status, error_message,
	started_at, completed_at, files_scanned, excluded_files_count,
	excluded_files, detected_languages, detected_frameworks,
	high_count, potential_count, initiator, created_at, updated_at`

// Create persists a new scan.
func (r *ScanRepository) Create(ctx context.Context, sc *scan.Scan) error {
	query := `
		INSERT INTO scans (` + scanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := r.db.ExecContext(ctx, query,
		sc.ID.String(),
		sc.ProjectName,
		sc.RefType.String(),
		sc.Ref,
		nullString(sc.RepoCommit),
		sc.Status.String(),
		nullString(sc.ErrorMessage),
		nullTime(sc.StartedAt),
		nullTime(sc.CompletedAt),
		sc.FilesScanned,
		sc.ExcludedFilesCount,
		pq.Array(sc.ExcludedFiles),
		pq.Array(sc.DetectedLanguages),
		pq.Array(sc.DetectedFrameworks),
		sc.HighCount,
		sc.PotentialCount,
		nullString(sc.Initiator),
		sc.CreatedAt,
		sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

// GetByID retrieves a scan by ID.
func (r *ScanRepository) GetByID(ctx context.Context, id shared.ID) (*scan.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1`
	return r.scanRow(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByIDTx retrieves a scan by ID inside tx, locking the row for update.
func (r *ScanRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id shared.ID) (*scan.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1 FOR UPDATE`
	return r.scanRow(tx.QueryRowContext(ctx, query, id.String()))
}

// Update persists all mutable fields of a scan.
func (r *ScanRepository) Update(ctx context.Context, sc *scan.Scan) error {
	return r.update(ctx, r.db.DB, sc)
}

// UpdateTx persists all mutable fields of a scan inside tx.
func (r *ScanRepository) UpdateTx(ctx context.Context, tx *sql.Tx, sc *scan.Scan) error {
	return r.update(ctx, tx, sc)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *ScanRepository) update(ctx context.Context, ex execer, sc *scan.Scan) error {
	query := `
		UPDATE scans SET
			ref = $2, repo_commit = $3, status = $4, error_message = $5,
			started_at = $6, completed_at = $7, files_scanned = $8,
			excluded_files_count = $9, excluded_files = $10,
			detected_languages = $11, detected_frameworks = $12,
			high_count = $13, potential_count = $14, updated_at = $15
		WHERE id = $1
	`
	res, err := ex.ExecContext(ctx, query,
		sc.ID.String(),
		sc.Ref,
		nullString(sc.RepoCommit),
		sc.Status.String(),
		nullString(sc.ErrorMessage),
		nullTime(sc.StartedAt),
		nullTime(sc.CompletedAt),
		sc.FilesScanned,
		sc.ExcludedFilesCount,
		pq.Array(sc.ExcludedFiles),
		pq.Array(sc.DetectedLanguages),
		pq.Array(sc.DetectedFrameworks),
		sc.HighCount,
		sc.PotentialCount,
		sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List lists scans with filtering and pagination, newest first.
func (r *ScanRepository) List(ctx context.Context, filter scan.Filter, page pagination.Pagination) (pagination.Result[*scan.Scan], error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ProjectName != "" {
		add("project_name = $%d", filter.ProjectName)
	}
	if filter.Status != nil {
		add("status = $%d", filter.Status.String())
	}
	if filter.Initiator != "" {
		add("initiator = $%d", filter.Initiator)
	}
	if filter.Since != nil {
		add("created_at >= $%d", *filter.Since)
	}
	if filter.Until != nil {
		add("created_at <= $%d", *filter.Until)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scans"+where, args...).Scan(&total); err != nil {
		return pagination.Result[*scan.Scan]{}, fmt.Errorf("failed to count scans: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM scans%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		scanColumns, where, len(args)+1, len(args)+2)
	args = append(args, page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return pagination.Result[*scan.Scan]{}, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	scans, err := r.collect(rows)
	if err != nil {
		return pagination.Result[*scan.Scan]{}, err
	}
	return pagination.NewResult(scans, total, page), nil
}

// ListCompletedByProject returns the most recent completed scans for a
// project, newest first, excluding the given scan id.
func (r *ScanRepository) ListCompletedByProject(ctx context.Context, projectName string, exclude shared.ID, limit int) ([]*scan.Scan, error) {
	query := `
		SELECT ` + scanColumns + `
		FROM scans
		WHERE project_name = $1 AND status = $2 AND id <> $3
		ORDER BY completed_at DESC
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, projectName, scan.StatusCompleted.String(), exclude.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed scans: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListStaleRunning returns running scans started before the cutoff.
func (r *ScanRepository) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*scan.Scan, error) {
	query := `
		SELECT ` + scanColumns + `
		FROM scans
		WHERE status = $1 AND started_at IS NOT NULL AND started_at < $2
	`
	rows, err := r.db.QueryContext(ctx, query, scan.StatusRunning.String(), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale scans: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// UpdateCounters persists the denormalized severity counters.
func (r *ScanRepository) UpdateCounters(ctx context.Context, id shared.ID, high, potential int) error {
	query := `UPDATE scans SET high_count = $2, potential_count = $3, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id.String(), high, potential)
	if err != nil {
		return fmt.Errorf("failed to update scan counters: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete deletes a scan. Findings cascade via the foreign key.
func (r *ScanRepository) Delete(ctx context.Context, id shared.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ScanRepository) scanRow(row rowScanner) (*scan.Scan, error) {
	var (
		sc           scan.Scan
		idStr        string
		refType      string
		status       string
		repoCommit   sql.NullString
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		initiator    sql.NullString
		excluded     pq.StringArray
		languages    pq.StringArray
		frameworks   pq.StringArray
	)

	err := row.Scan(
		&idStr, &sc.ProjectName, &refType, &sc.Ref, &repoCommit, &status, &errorMessage,
		&startedAt, &completedAt, &sc.FilesScanned, &sc.ExcludedFilesCount,
		&excluded, &languages, &frameworks,
		&sc.HighCount, &sc.PotentialCount, &initiator, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan scan row: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, err
	}
	sc.ID = id
	sc.RefType = scan.RefType(refType)
	sc.Status = scan.Status(status)
	sc.RepoCommit = nullStringValue(repoCommit)
	sc.ErrorMessage = nullStringValue(errorMessage)
	sc.StartedAt = nullTimeValue(startedAt)
	sc.CompletedAt = nullTimeValue(completedAt)
	sc.Initiator = nullStringValue(initiator)
	sc.ExcludedFiles = excluded
	sc.DetectedLanguages = languages
	sc.DetectedFrameworks = frameworks
	return &sc, nil
}

func (r *ScanRepository) collect(rows *sql.Rows) ([]*scan.Scan, error) {
	var scans []*scan.Scan
	for rows.Next() {
		sc, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}
