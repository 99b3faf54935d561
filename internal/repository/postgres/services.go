package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
)

const serviceColumns = `id, project_id, name, type, provider, provider_internal_id, provider_project_id,
	url, dashboard_url, region, notes, status, last_checked_at, last_deploy_at, last_run_at,
	last_run_status, expected_frequency_minutes, provider_status, created_at, updated_at`

// serviceGroupColumns whitelists the columns CountServicesByField may group on.
var serviceGroupColumns = map[string]string{
	"status":   "status",
	"type":     "type",
	"provider": "provider",
}

func scanService(row pgx.Row) (*domain.Service, error) {
	var (
		s             domain.Service
		svcType       string
		provider      string
		status        string
		lastRunStatus *string
		providerRaw   []byte
	)
	if err := row.Scan(
		&s.ID, &s.ProjectID, &s.Name, &svcType, &provider, &s.ProviderInternalID, &s.ProviderProjectID,
		&s.URL, &s.DashboardURL, &s.Region, &s.Notes, &status, &s.LastCheckedAt, &s.LastDeployAt, &s.LastRunAt,
		&lastRunStatus, &s.ExpectedFrequencyMinutes, &providerRaw, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Type = domain.ServiceType(svcType)
	s.Provider = domain.Provider(provider)
	s.Status = domain.ServiceStatus(status)
	if lastRunStatus != nil {
		rs := domain.RunStatus(*lastRunStatus)
		s.LastRunStatus = &rs
	}
	if len(providerRaw) > 0 {
		s.ProviderStatus = providerRaw
	}
	return &s, nil
}

func serviceWhere(filter domain.ServiceFilter) where {
	var w where
	w.eq("project_id", filter.ProjectID)
	w.eq("type", string(filter.Type))
	w.eq("provider", string(filter.Provider))
	w.eq("status", string(filter.Status))
	return w
}

// CreateService inserts a service record.
func (r *Repository) CreateService(ctx context.Context, service *domain.Service) error {
	const query = `INSERT INTO services (id, project_id, name, type, provider, provider_internal_id, provider_project_id,
			url, dashboard_url, region, notes, status, expected_frequency_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.pool.Exec(ctx, query,
		service.ID,
		service.ProjectID,
		service.Name,
		string(service.Type),
		string(service.Provider),
		service.ProviderInternalID,
		service.ProviderProjectID,
		service.URL,
		service.DashboardURL,
		service.Region,
		service.Notes,
		string(service.Status),
		intPtrToNil(service.ExpectedFrequencyMinutes),
		service.CreatedAt,
		service.UpdatedAt,
	)
	return mapError(err)
}

// GetServiceByID fetches a service by identifier.
func (r *Repository) GetServiceByID(ctx context.Context, serviceID string) (*domain.Service, error) {
	const query = `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	s, err := scanService(r.pool.QueryRow(ctx, query, serviceID))
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

// GetServiceByProviderIdentity fetches the service bound to a provider resource.
func (r *Repository) GetServiceByProviderIdentity(ctx context.Context, provider domain.Provider, internalID string) (*domain.Service, error) {
	const query = `SELECT ` + serviceColumns + ` FROM services WHERE provider = $1 AND provider_internal_id = $2`
	s, err := scanService(r.pool.QueryRow(ctx, query, string(provider), internalID))
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

// ListServices returns services matching filter ordered by name.
func (r *Repository) ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	w := serviceWhere(filter)
	query := `SELECT ` + serviceColumns + ` FROM services` + w.String() + ` ORDER BY name ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *s)
	}
	return services, rows.Err()
}

// UpdateServiceMetadata applies user-editable fields and returns the result.
func (r *Repository) UpdateServiceMetadata(ctx context.Context, serviceID string, update domain.ServiceMetadataUpdate) (*domain.Service, error) {
	const query = `UPDATE services
		SET name = COALESCE($2, name),
			type = COALESCE($3, type),
			provider = COALESCE($4, provider),
			provider_internal_id = COALESCE($5, provider_internal_id),
			provider_project_id = COALESCE($6, provider_project_id),
			url = COALESCE($7, url),
			dashboard_url = COALESCE($8, dashboard_url),
			region = COALESCE($9, region),
			notes = COALESCE($10, notes),
			expected_frequency_minutes = COALESCE($11, expected_frequency_minutes),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + serviceColumns
	var svcType, provider any
	if update.Type != nil {
		svcType = string(*update.Type)
	}
	if update.Provider != nil {
		provider = string(*update.Provider)
	}
	s, err := scanService(r.pool.QueryRow(ctx, query,
		serviceID,
		stringPtrToNil(update.Name),
		svcType,
		provider,
		stringPtrToNil(update.ProviderInternalID),
		stringPtrToNil(update.ProviderProjectID),
		stringPtrToNil(update.URL),
		stringPtrToNil(update.DashboardURL),
		stringPtrToNil(update.Region),
		stringPtrToNil(update.Notes),
		intPtrToNil(update.ExpectedFrequencyMinutes),
	))
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

// statusSetClause renders the SET clause for status writes with parameters
// numbered from first.
func statusSetClause(first int) string {
	return fmt.Sprintf(`SET status = COALESCE($%d, status),
			last_checked_at = COALESCE($%d, last_checked_at),
			last_deploy_at = COALESCE($%d, last_deploy_at),
			last_run_at = COALESCE($%d, last_run_at),
			last_run_status = COALESCE($%d, last_run_status),
			provider_status = COALESCE($%d, provider_status),
			updated_at = NOW()`, first, first+1, first+2, first+3, first+4, first+5)
}

func statusArgs(update domain.ServiceStatusUpdate) []any {
	var status, runStatus any
	if update.Status != nil {
		status = string(*update.Status)
	}
	if update.LastRunStatus != nil {
		runStatus = string(*update.LastRunStatus)
	}
	return []any{
		status,
		timePtrToNil(update.LastCheckedAt),
		timePtrToNil(update.LastDeployAt),
		timePtrToNil(update.LastRunAt),
		runStatus,
		bytesToNil(update.ProviderStatus),
	}
}

// UpdateServiceStatus writes system-owned status fields by identifier.
func (r *Repository) UpdateServiceStatus(ctx context.Context, serviceID string, update domain.ServiceStatusUpdate) error {
	query := `UPDATE services ` + statusSetClause(2) + ` WHERE id = $1`
	args := append([]any{serviceID}, statusArgs(update)...)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteService removes a service; metrics and env vars cascade.
func (r *Repository) DeleteService(ctx context.Context, serviceID string) error {
	const query = `DELETE FROM services WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, serviceID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountServices counts services matching filter.
func (r *Repository) CountServices(ctx context.Context, filter domain.ServiceFilter) (int, error) {
	w := serviceWhere(filter)
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM services`+w.String(), w.args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountServicesByField groups services by status, type or provider.
func (r *Repository) CountServicesByField(ctx context.Context, field string) (map[string]int, error) {
	column, ok := serviceGroupColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: cannot group services by %q", repository.ErrInvalidArgument, field)
	}
	return r.countBy(ctx, "services", column)
}

func (r *Repository) countBy(ctx context.Context, table, column string) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %s, COUNT(1) FROM %s GROUP BY %s`, column, table, column)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}
