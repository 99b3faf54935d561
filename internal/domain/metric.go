package domain

import (
	"encoding/json"
	"time"
)

// Metric names recorded by the sync paths.
const (
	MetricHealth               = "health"
	MetricDeployStatus         = "deploy_status"
	MetricDBHealth             = "db_health"
	MetricAutomationStatus     = "automation_status"
	MetricAutomationDurationMS = "automation_duration_ms"
	MetricAutomationError      = "automation_error"
)

// Metric is one immutable observation about a service.
type Metric struct {
	ID          string          `json:"id"`
	ServiceID   string          `json:"serviceId"`
	Name        string          `json:"metricName"`
	Value       json.RawMessage `json:"metricValue"`
	CollectedAt time.Time       `json:"collectedAt"`
}

// MetricFilter narrows metric listings.
type MetricFilter struct {
	ServiceID string
	Name      string
	Limit     int
}

// NewMetric builds a metric with value encoded as JSON.
func NewMetric(serviceID, name string, value any, collectedAt time.Time) (Metric, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Metric{}, err
	}
	return Metric{ServiceID: serviceID, Name: name, Value: raw, CollectedAt: collectedAt}, nil
}
