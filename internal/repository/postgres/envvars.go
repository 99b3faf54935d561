package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
)

// UpsertEnvVar stores an encrypted value keyed by (service, key).
func (r *Repository) UpsertEnvVar(ctx context.Context, envVar *domain.EnvVar) error {
	const query = `INSERT INTO env_vars (id, service_id, key, value, is_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (service_id, key) DO UPDATE
		SET value = EXCLUDED.value, is_secret = EXCLUDED.is_secret, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`
	row := r.pool.QueryRow(ctx, query, envVar.ID, envVar.ServiceID, envVar.Key, envVar.Value, envVar.IsSecret, envVar.UpdatedAt)
	if err := row.Scan(&envVar.ID, &envVar.CreatedAt, &envVar.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

// ListEnvVarsByService returns a service's env vars ordered by key.
func (r *Repository) ListEnvVarsByService(ctx context.Context, serviceID string) ([]domain.EnvVar, error) {
	const query = `SELECT id, service_id, key, value, is_secret, created_at, updated_at
		FROM env_vars WHERE service_id = $1 ORDER BY key ASC`
	rows, err := r.pool.Query(ctx, query, serviceID)
	if err != nil {
		return nil, err
	}
	return collectEnvVars(rows)
}

// ListEnvVarsByProject returns env vars of every service in a project.
func (r *Repository) ListEnvVarsByProject(ctx context.Context, projectID string) ([]domain.EnvVar, error) {
	const query = `SELECT e.id, e.service_id, e.key, e.value, e.is_secret, e.created_at, e.updated_at
		FROM env_vars e
		INNER JOIN services s ON s.id = e.service_id
		WHERE s.project_id = $1
		ORDER BY s.name ASC, e.key ASC`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	return collectEnvVars(rows)
}

// DeleteEnvVar removes one key from a service.
func (r *Repository) DeleteEnvVar(ctx context.Context, serviceID, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM env_vars WHERE service_id = $1 AND key = $2`, serviceID, key)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func collectEnvVars(rows pgx.Rows) ([]domain.EnvVar, error) {
	defer rows.Close()
	vars := make([]domain.EnvVar, 0)
	for rows.Next() {
		var v domain.EnvVar
		if err := rows.Scan(&v.ID, &v.ServiceID, &v.Key, &v.Value, &v.IsSecret, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}
