package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/leakwatchio/api/pkg/domain/project"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/pagination"
)

// ProjectRepository implements project.Repository using PostgreSQL.
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, name, repo_url, created_by, created_at`

// Create persists a new project.
func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID.String(),
		p.Name,
		p.RepoURL,
		nullString(p.CreatedBy),
		p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetByName retrieves a project by its unique name.
func (r *ProjectRepository) GetByName(ctx context.Context, name string) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE name = $1`
	return r.scanRow(r.db.QueryRowContext(ctx, query, name))
}

// GetByRepoURL retrieves a project by its normalized repository URL.
func (r *ProjectRepository) GetByRepoURL(ctx context.Context, repoURL string) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE repo_url = $1`
	return r.scanRow(r.db.QueryRowContext(ctx, query, repoURL))
}

// List lists projects with pagination, newest first.
func (r *ProjectRepository) List(ctx context.Context, page pagination.Pagination) (pagination.Result[*project.Project], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return pagination.Result[*project.Project]{}, fmt.Errorf("failed to count projects: %w", err)
	}

	query := `
		SELECT ` + projectColumns + `
		FROM projects
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return pagination.Result[*project.Project]{}, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return pagination.Result[*project.Project]{}, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return pagination.Result[*project.Project]{}, err
	}
	return pagination.NewResult(projects, total, page), nil
}

// Update persists name and url changes.
func (r *ProjectRepository) Update(ctx context.Context, p *project.Project) error {
	query := `UPDATE projects SET name = $2, repo_url = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, p.ID.String(), p.Name, p.RepoURL)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update project: %w", err)
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

// Delete deletes a project by id.
func (r *ProjectRepository) Delete(ctx context.Context, id shared.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
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

func (r *ProjectRepository) scanRow(row rowScanner) (*project.Project, error) {
	var (
		p         project.Project
		idStr     string
		createdBy sql.NullString
	)
	err := row.Scan(&idStr, &p.Name, &p.RepoURL, &createdBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan project row: %w", err)
	}
	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.CreatedBy = nullStringValue(createdBy)
	return &p, nil
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
