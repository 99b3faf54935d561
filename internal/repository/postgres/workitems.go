package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
)

const workItemColumns = `id, project_id, title, description, type, status, priority, due_date, blocked_by, tags,
	created_at, updated_at`

var workItemGroupColumns = map[string]string{
	"status":   "status",
	"type":     "type",
	"priority": "priority",
}

func scanWorkItem(row pgx.Row) (*domain.WorkItem, error) {
	var w domain.WorkItem
	if err := row.Scan(&w.ID, &w.ProjectID, &w.Title, &w.Description, &w.Type, &w.Status, &w.Priority,
		&w.DueDate, &w.BlockedBy, &w.Tags, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Tags = tagsOrEmpty(w.Tags)
	return &w, nil
}

func workItemWhere(filter domain.WorkItemFilter) where {
	var w where
	w.eq("project_id", filter.ProjectID)
	w.eq("status", filter.Status)
	w.eq("type", filter.Type)
	w.eq("priority", filter.Priority)
	return w
}

// CreateWorkItem inserts a work item.
func (r *Repository) CreateWorkItem(ctx context.Context, item *domain.WorkItem) error {
	const query = `INSERT INTO work_items (` + workItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.ProjectID,
		item.Title,
		item.Description,
		item.Type,
		item.Status,
		item.Priority,
		timePtrToNil(item.DueDate),
		stringPtrToNil(item.BlockedBy),
		tagsOrEmpty(item.Tags),
		item.CreatedAt,
		item.UpdatedAt,
	)
	return mapError(err)
}

// UpdateWorkItem overwrites a work item.
func (r *Repository) UpdateWorkItem(ctx context.Context, item *domain.WorkItem) error {
	const query = `UPDATE work_items
		SET project_id = $2, title = $3, description = $4, type = $5, status = $6, priority = $7,
			due_date = $8, blocked_by = $9, tags = $10, updated_at = $11
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		item.ID,
		item.ProjectID,
		item.Title,
		item.Description,
		item.Type,
		item.Status,
		item.Priority,
		timePtrToNil(item.DueDate),
		stringPtrToNil(item.BlockedBy),
		tagsOrEmpty(item.Tags),
		item.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetWorkItemByID fetches a work item.
func (r *Repository) GetWorkItemByID(ctx context.Context, itemID string) (*domain.WorkItem, error) {
	const query = `SELECT ` + workItemColumns + ` FROM work_items WHERE id = $1`
	w, err := scanWorkItem(r.pool.QueryRow(ctx, query, itemID))
	if err != nil {
		return nil, mapError(err)
	}
	return w, nil
}

// ListWorkItems returns work items matching filter, soonest due first.
func (r *Repository) ListWorkItems(ctx context.Context, filter domain.WorkItemFilter) ([]domain.WorkItem, error) {
	w := workItemWhere(filter)
	query := `SELECT ` + workItemColumns + ` FROM work_items` + w.String() + ` ORDER BY due_date ASC NULLS LAST, created_at DESC`
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.WorkItem, 0)
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// DeleteWorkItem removes a work item; dependants lose their blocked_by link.
func (r *Repository) DeleteWorkItem(ctx context.Context, itemID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM work_items WHERE id = $1`, itemID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountWorkItems counts work items matching filter.
func (r *Repository) CountWorkItems(ctx context.Context, filter domain.WorkItemFilter) (int, error) {
	w := workItemWhere(filter)
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM work_items`+w.String(), w.args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountWorkItemsByField groups work items by status, type or priority.
func (r *Repository) CountWorkItemsByField(ctx context.Context, field string) (map[string]int, error) {
	column, ok := workItemGroupColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: cannot group work items by %q", repository.ErrInvalidArgument, field)
	}
	return r.countBy(ctx, "work_items", column)
}
