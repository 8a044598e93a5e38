package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/leakwatchio/api/pkg/domain/multiscan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/pagination"
)

// MultiScanRepository implements multiscan.Repository using PostgreSQL.
type MultiScanRepository struct {
	db *DB
}

// NewMultiScanRepository creates a new MultiScanRepository.
func NewMultiScanRepository(db *DB) *MultiScanRepository {
	return &MultiScanRepository{db: db}
}

const multiScanColumns = `id, name, scan_ids, initiator, created_at`

// Create persists a new multi-scan record.
func (r *MultiScanRepository) Create(ctx context.Context, ms *multiscan.MultiScan) error {
	query := `
		INSERT INTO multi_scans (` + multiScanColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`
	ids := make([]string, len(ms.ScanIDs))
	for i, id := range ms.ScanIDs {
		ids[i] = id.String()
	}
	_, err := r.db.ExecContext(ctx, query,
		ms.ID.String(),
		ms.Name,
		pq.Array(ids),
		nullString(ms.Initiator),
		ms.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create multi-scan: %w", err)
	}
	return nil
}

// GetByID retrieves a multi-scan by ID.
func (r *MultiScanRepository) GetByID(ctx context.Context, id shared.ID) (*multiscan.MultiScan, error) {
	query := `SELECT ` + multiScanColumns + ` FROM multi_scans WHERE id = $1`
	return r.scanRow(r.db.QueryRowContext(ctx, query, id.String()))
}

// List lists multi-scans with pagination, newest first.
func (r *MultiScanRepository) List(ctx context.Context, page pagination.Pagination) (pagination.Result[*multiscan.MultiScan], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM multi_scans`).Scan(&total); err != nil {
		return pagination.Result[*multiscan.MultiScan]{}, fmt.Errorf("failed to count multi-scans: %w", err)
	}

	query := `
		SELECT ` + multiScanColumns + `
		FROM multi_scans
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return pagination.Result[*multiscan.MultiScan]{}, fmt.Errorf("failed to list multi-scans: %w", err)
	}
	defer rows.Close()

	var multiScans []*multiscan.MultiScan
	for rows.Next() {
		ms, err := r.scanRow(rows)
		if err != nil {
			return pagination.Result[*multiscan.MultiScan]{}, err
		}
		multiScans = append(multiScans, ms)
	}
	if err := rows.Err(); err != nil {
		return pagination.Result[*multiscan.MultiScan]{}, err
	}
	return pagination.NewResult(multiScans, total, page), nil
}

// Delete deletes a multi-scan record. The referenced scans are untouched.
func (r *MultiScanRepository) Delete(ctx context.Context, id shared.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM multi_scans WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete multi-scan: %w", err)
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

func (r *MultiScanRepository) scanRow(row rowScanner) (*multiscan.MultiScan, error) {
	var (
		ms        multiscan.MultiScan
		idStr     string
		scanIDs   pq.StringArray
		initiator sql.NullString
	)
	err := row.Scan(&idStr, &ms.Name, &scanIDs, &initiator, &ms.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan multi-scan row: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, err
	}
	ms.ID = id
	ms.Initiator = nullStringValue(initiator)
	ms.ScanIDs = make([]shared.ID, 0, len(scanIDs))
	for _, s := range scanIDs {
		sid, err := shared.IDFromString(s)
		if err != nil {
			return nil, err
		}
		ms.ScanIDs = append(ms.ScanIDs, sid)
	}
	return &ms, nil
}
