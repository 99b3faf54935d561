package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
)

const defaultMetricLimit = 100

// InsertMetric appends a metric sample.
func (r *Repository) InsertMetric(ctx context.Context, metric *domain.Metric) error {
	if metric == nil {
		return fmt.Errorf("metric required")
	}
	const query = `INSERT INTO metrics (id, service_id, metric_name, metric_value, collected_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, metric.ID, metric.ServiceID, metric.Name, metric.Value, metric.CollectedAt.UTC())
	return mapError(err)
}

// ListMetrics returns the most recent samples matching filter.
func (r *Repository) ListMetrics(ctx context.Context, filter domain.MetricFilter) ([]domain.Metric, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMetricLimit
	}
	var w where
	w.eq("service_id", filter.ServiceID)
	w.eq("metric_name", filter.Name)
	w.args = append(w.args, limit)
	query := fmt.Sprintf(`SELECT id, service_id, metric_name, metric_value, collected_at FROM metrics%s
		ORDER BY collected_at DESC LIMIT $%d`, w.String(), len(w.args))
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics := make([]domain.Metric, 0)
	for rows.Next() {
		var (
			m     domain.Metric
			value []byte
		)
		if err := rows.Scan(&m.ID, &m.ServiceID, &m.Name, &value, &m.CollectedAt); err != nil {
			return nil, err
		}
		m.Value = value
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// DeleteMetricsBefore removes samples collected strictly before cutoff.
func (r *Repository) DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM metrics WHERE collected_at < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
