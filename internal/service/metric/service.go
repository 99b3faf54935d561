package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
	"github.com/dotanscherzer/projects-Dasboard/internal/telemetry"
)

// DefaultRetentionDays is used when Cleanup receives a non-positive value.
const DefaultRetentionDays = 30

const maxListLimit = 1000

// ServiceLookup resolves services referenced by metrics.
type ServiceLookup interface {
	GetServiceByID(ctx context.Context, serviceID string) (*domain.Service, error)
}

// CreateInput carries a manually posted metric.
type CreateInput struct {
	ServiceID   string          `json:"serviceId"`
	MetricName  string          `json:"metricName"`
	MetricValue json.RawMessage `json:"metricValue"`
	CollectedAt *time.Time      `json:"collectedAt,omitempty"`
}

var (
	errMissingServiceID = fmt.Errorf("service id required: %w", repository.ErrInvalidArgument)
	errMissingName      = fmt.Errorf("metric name required: %w", repository.ErrInvalidArgument)
	errInvalidValue     = fmt.Errorf("metric value must be a JSON string, number or object: %w", repository.ErrInvalidArgument)
)

// Service is the metric store facade.
type Service struct {
	metrics  repository.MetricRepository
	services ServiceLookup
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a metric service.
func New(metrics repository.MetricRepository, services ServiceLookup, logger *slog.Logger) Service {
	return Service{metrics: metrics, services: services, logger: logger, now: time.Now}
}

// Record appends an observation produced by the sync paths.
func (s Service) Record(ctx context.Context, serviceID, name string, value any, collectedAt time.Time) error {
	m, err := domain.NewMetric(serviceID, name, value, collectedAt.UTC())
	if err != nil {
		return fmt.Errorf("encode metric %s: %w", name, err)
	}
	m.ID = uuid.NewString()
	return s.metrics.InsertMetric(ctx, &m)
}

// Create stores a metric posted through the API after checking the
// service exists.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Metric, error) {
	serviceID := strings.TrimSpace(input.ServiceID)
	if serviceID == "" {
		return nil, errMissingServiceID
	}
	name := strings.TrimSpace(input.MetricName)
	if name == "" {
		return nil, errMissingName
	}
	if !validValue(input.MetricValue) {
		return nil, errInvalidValue
	}
	if _, err := s.services.GetServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}
	collected := s.now().UTC()
	if input.CollectedAt != nil && !input.CollectedAt.IsZero() {
		collected = input.CollectedAt.UTC()
	}
	m := domain.Metric{
		ID:          uuid.NewString(),
		ServiceID:   serviceID,
		Name:        name,
		Value:       input.MetricValue,
		CollectedAt: collected,
	}
	if err := s.metrics.InsertMetric(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func validValue(raw json.RawMessage) bool {
	if len(raw) == 0 || !json.Valid(raw) {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch v.(type) {
	case string, float64, map[string]any:
		return true
	}
	return false
}

// List returns the newest samples matching filter.
func (s Service) List(ctx context.Context, filter domain.MetricFilter) ([]domain.Metric, error) {
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.metrics.ListMetrics(ctx, filter)
}

// Cleanup deletes samples older than daysToKeep days and returns the count.
func (s Service) Cleanup(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = DefaultRetentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -daysToKeep)
	deleted, err := s.metrics.DeleteMetricsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete metrics before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	telemetry.ObservePruned(deleted)
	s.logger.Info("metrics retention applied", "days", daysToKeep, "cutoff", cutoff, "deleted", deleted)
	return deleted, nil
}

