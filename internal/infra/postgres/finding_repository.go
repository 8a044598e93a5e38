package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leakwatchio/api/pkg/domain/finding"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/pagination"
)

// insertChunkSize bounds the number of findings written per transaction so a
// payload with tens of thousands of results never becomes one multi-minute
// transaction.
const insertChunkSize = 500

// FindingRepository implements finding.Repository using PostgreSQL.
type FindingRepository struct {
	db *DB
}

// NewFindingRepository creates a new FindingRepository.
func NewFindingRepository(db *DB) *FindingRepository {
	return &FindingRepository{db: db}
}

const findingColumns = `
	id, scan_id, file_path, line_number, raw_value, finding_type,
	severity, confidence, context, status, is_exception,
	exception_comment, refuted_at, reviewed_by, created_at`

// CreateBatch inserts findings in fixed-size chunks.
func (r *FindingRepository) CreateBatch(ctx context.Context, findings []*finding.Finding) error {
	for start := 0; start < len(findings); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(findings) {
			end = len(findings)
		}
		if err := r.insertChunk(ctx, findings[start:end]); err != nil {
			return fmt.Errorf("failed to insert findings chunk at %d: %w", start, err)
		}
	}
	return nil
}

func (r *FindingRepository) insertChunk(ctx context.Context, findings []*finding.Finding) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO findings (`+findingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range findings {
			_, err := stmt.ExecContext(ctx,
				f.ID.String(),
				f.ScanID.String(),
				f.FilePath,
				f.LineNumber,
				f.RawValue,
				f.Type,
				f.Severity.String(),
				f.Confidence,
				nullString(f.Context),
				f.Status.String(),
				f.IsException,
				nullString(f.ExceptionComment),
				nullTime(f.RefutedAt),
				nullString(f.ReviewedBy),
				f.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves a finding by ID.
func (r *FindingRepository) GetByID(ctx context.Context, id shared.ID) (*finding.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE id = $1`
	return r.scanRow(r.db.QueryRowContext(ctx, query, id.String()))
}

// Update persists the review fields of a finding.
func (r *FindingRepository) Update(ctx context.Context, f *finding.Finding) error {
	query := `
		UPDATE findings SET
			severity = $2, status = $3, is_exception = $4,
			exception_comment = $5, refuted_at = $6, reviewed_by = $7
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		f.ID.String(),
		f.Severity.String(),
		f.Status.String(),
		f.IsException,
		nullString(f.ExceptionComment),
		nullTime(f.RefutedAt),
		nullString(f.ReviewedBy),
	)
	if err != nil {
		return fmt.Errorf("failed to update finding: %w", err)
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

// Delete deletes a single finding.
func (r *FindingRepository) Delete(ctx context.Context, id shared.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM findings WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete finding: %w", err)
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

// DeleteByScanID deletes all findings of a scan.
func (r *FindingRepository) DeleteByScanID(ctx context.Context, scanID shared.ID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM findings WHERE scan_id = $1`, scanID.String())
	if err != nil {
		return fmt.Errorf("failed to delete findings for scan: %w", err)
	}
	return nil
}

// ListByScanID lists findings of a scan with pagination.
func (r *FindingRepository) ListByScanID(ctx context.Context, scanID shared.ID, page pagination.Pagination) (pagination.Result[*finding.Finding], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM findings WHERE scan_id = $1`, scanID.String()).Scan(&total); err != nil {
		return pagination.Result[*finding.Finding]{}, fmt.Errorf("failed to count findings: %w", err)
	}

	query := `
		SELECT ` + findingColumns + `
		FROM findings
		WHERE scan_id = $1
		ORDER BY file_path, line_number
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, scanID.String(), page.Limit(), page.Offset())
	if err != nil {
		return pagination.Result[*finding.Finding]{}, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	findings, err := r.collect(rows)
	if err != nil {
		return pagination.Result[*finding.Finding]{}, err
	}
	return pagination.NewResult(findings, total, page), nil
}

// ListReviewedByScanID returns findings of a scan carrying a human decision.
func (r *FindingRepository) ListReviewedByScanID(ctx context.Context, scanID shared.ID) ([]*finding.Finding, error) {
	query := `
		SELECT ` + findingColumns + `
		FROM findings
		WHERE scan_id = $1 AND status <> $2
	`
	rows, err := r.db.QueryContext(ctx, query, scanID.String(), finding.StatusNone.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewed findings: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListManualByScanID returns the manually added findings of a scan.
func (r *FindingRepository) ListManualByScanID(ctx context.Context, scanID shared.ID) ([]*finding.Finding, error) {
	query := `
		SELECT ` + findingColumns + `
		FROM findings
		WHERE scan_id = $1 AND raw_value LIKE '%' || $2
	`
	rows, err := r.db.QueryContext(ctx, query, scanID.String(), finding.ManualValueSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to list manual findings: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// CountBySeverity counts non-exception findings per severity for a scan.
func (r *FindingRepository) CountBySeverity(ctx context.Context, scanID shared.ID) (finding.SeverityCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE severity = $2),
			COUNT(*) FILTER (WHERE severity = $3)
		FROM findings
		WHERE scan_id = $1 AND is_exception = FALSE
	`
	var counts finding.SeverityCounts
	err := r.db.QueryRowContext(ctx, query,
		scanID.String(),
		finding.SeverityHigh.String(),
		finding.SeverityPotential.String(),
	).Scan(&counts.High, &counts.Potential)
	if err != nil {
		return finding.SeverityCounts{}, fmt.Errorf("failed to count findings by severity: %w", err)
	}
	return counts, nil
}

func (r *FindingRepository) scanRow(row rowScanner) (*finding.Finding, error) {
	var (
		f          finding.Finding
		idStr      string
		scanIDStr  string
		severity   string
		status     string
		fctx       sql.NullString
		comment    sql.NullString
		refutedAt  sql.NullTime
		reviewedBy sql.NullString
	)

	err := row.Scan(
		&idStr, &scanIDStr, &f.FilePath, &f.LineNumber, &f.RawValue, &f.Type,
		&severity, &f.Confidence, &fctx, &status, &f.IsException,
		&comment, &refutedAt, &reviewedBy, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan finding row: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, err
	}
	scanID, err := shared.IDFromString(scanIDStr)
	if err != nil {
		return nil, err
	}
	f.ID = id
	f.ScanID = scanID
	f.Severity = finding.Severity(severity)
	f.Status = finding.ReviewStatus(status)
	f.Context = nullStringValue(fctx)
	f.ExceptionComment = nullStringValue(comment)
	f.RefutedAt = nullTimeValue(refutedAt)
	f.ReviewedBy = nullStringValue(reviewedBy)
	return &f, nil
}

func (r *FindingRepository) collect(rows *sql.Rows) ([]*finding.Finding, error) {
	var findings []*finding.Finding
	for rows.Next() {
		f, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
