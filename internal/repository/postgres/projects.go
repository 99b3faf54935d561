package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
)

const projectColumns = `id, name, code, description, owner, status, lifecycle_stage, priority,
	next_action, target_release_date, tags, created_at, updated_at`

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Description, &p.Owner, &p.Status, &p.LifecycleStage, &p.Priority,
		&p.NextAction, &p.TargetReleaseDate, &p.Tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Tags = tagsOrEmpty(p.Tags)
	return &p, nil
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.pool.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Code,
		project.Description,
		project.Owner,
		project.Status,
		project.LifecycleStage,
		project.Priority,
		project.NextAction,
		timePtrToNil(project.TargetReleaseDate),
		tagsOrEmpty(project.Tags),
		project.CreatedAt,
		project.UpdatedAt,
	)
	return mapError(err)
}

// UpdateProject overwrites the editable fields of a project.
func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project) error {
	const query = `UPDATE projects
		SET name = $2, code = $3, description = $4, owner = $5, status = $6, lifecycle_stage = $7,
			priority = $8, next_action = $9, target_release_date = $10, tags = $11, updated_at = $12
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Code,
		project.Description,
		project.Owner,
		project.Status,
		project.LifecycleStage,
		project.Priority,
		project.NextAction,
		timePtrToNil(project.TargetReleaseDate),
		tagsOrEmpty(project.Tags),
		project.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetProjectByID fetches a project by identifier.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.pool.QueryRow(ctx, query, projectID))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// ListProjects returns projects matching filter, newest first.
func (r *Repository) ListProjects(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, error) {
	var w where
	w.eq("status", filter.Status)
	w.eq("lifecycle_stage", filter.LifecycleStage)
	w.eq("priority", filter.Priority)
	w.contains("tags", filter.Tag)
	query := `SELECT ` + projectColumns + ` FROM projects` + w.String() + ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project; services, work items and their
// dependants cascade.
func (r *Repository) DeleteProject(ctx context.Context, projectID string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, projectID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountProjects counts projects matching filter.
func (r *Repository) CountProjects(ctx context.Context, filter domain.ProjectFilter) (int, error) {
	var w where
	w.eq("status", filter.Status)
	w.eq("lifecycle_stage", filter.LifecycleStage)
	w.eq("priority", filter.Priority)
	w.contains("tags", filter.Tag)
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM projects`+w.String(), w.args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
