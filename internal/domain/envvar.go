package domain

import "time"

// EnvVar is a configuration value attached to a service. Value holds the
// encrypted payload at rest.
type EnvVar struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"serviceId"`
	Key       string    `json:"key"`
	Value     []byte    `json:"-"`
	IsSecret  bool      `json:"isSecret"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
