package domain

import (
	"encoding/json"
	"time"
)

// ServiceType classifies what a monitored deployment does.
type ServiceType string

const (
	ServiceTypeBackend    ServiceType = "backend"
	ServiceTypeFrontend   ServiceType = "frontend"
	ServiceTypeDB         ServiceType = "db"
	ServiceTypeWorker     ServiceType = "worker"
	ServiceTypeAutomation ServiceType = "automation"
	ServiceTypeOther      ServiceType = "other"
)

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceTypeBackend, ServiceTypeFrontend, ServiceTypeDB, ServiceTypeWorker, ServiceTypeAutomation, ServiceTypeOther:
		return true
	}
	return false
}

// Provider names the external platform hosting a service.
type Provider string

const (
	ProviderRender   Provider = "render"
	ProviderNetlify  Provider = "netlify"
	ProviderAtlas    Provider = "mongodb_atlas"
	ProviderMake     Provider = "make"
	ProviderSupabase Provider = "supabase"
	ProviderOther    Provider = "other"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderRender, ProviderNetlify, ProviderAtlas, ProviderMake, ProviderSupabase, ProviderOther:
		return true
	}
	return false
}

// ServiceStatus is the normalized health state of a service.
type ServiceStatus string

const (
	StatusUnknown  ServiceStatus = "unknown"
	StatusUp       ServiceStatus = "up"
	StatusDown     ServiceStatus = "down"
	StatusDegraded ServiceStatus = "degraded"
	StatusOK       ServiceStatus = "ok"
	StatusFailing  ServiceStatus = "failing"
	StatusStale    ServiceStatus = "stale"
)

// Valid reports whether s is part of the status vocabulary.
func (s ServiceStatus) Valid() bool {
	switch s {
	case StatusUnknown, StatusUp, StatusDown, StatusDegraded, StatusOK, StatusFailing, StatusStale:
		return true
	}
	return false
}

// RunStatus is the outcome reported for an automation run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Service is one monitored deployment bound to a provider.
type Service struct {
	ID                       string          `json:"id"`
	ProjectID                string          `json:"projectId"`
	Name                     string          `json:"name"`
	Type                     ServiceType     `json:"type"`
	Provider                 Provider        `json:"provider"`
	ProviderInternalID       string          `json:"providerInternalId"`
	ProviderProjectID        string          `json:"providerProjectId,omitempty"`
	URL                      string          `json:"url,omitempty"`
	DashboardURL             string          `json:"dashboardUrl,omitempty"`
	Region                   string          `json:"region,omitempty"`
	Notes                    string          `json:"notes,omitempty"`
	Status                   ServiceStatus   `json:"status"`
	LastCheckedAt            *time.Time      `json:"lastCheckedAt,omitempty"`
	LastDeployAt             *time.Time      `json:"lastDeployAt,omitempty"`
	LastRunAt                *time.Time      `json:"lastRunAt,omitempty"`
	LastRunStatus            *RunStatus      `json:"lastRunStatus"`
	ExpectedFrequencyMinutes *int            `json:"expectedFrequencyMinutes,omitempty"`
	ProviderStatus           json.RawMessage `json:"providerStatus,omitempty"`
	CreatedAt                time.Time       `json:"createdAt"`
	UpdatedAt                time.Time       `json:"updatedAt"`
}

// ServiceStatusUpdate carries the system-owned fields a sync, webhook or
// staleness pass may overwrite. Nil fields are left untouched.
type ServiceStatusUpdate struct {
	Status         *ServiceStatus
	LastCheckedAt  *time.Time
	LastDeployAt   *time.Time
	LastRunAt      *time.Time
	LastRunStatus  *RunStatus
	ProviderStatus json.RawMessage
}

// ServiceFilter narrows service listings. Empty fields match everything.
type ServiceFilter struct {
	ProjectID string
	Type      ServiceType
	Provider  Provider
	Status    ServiceStatus
}

// ServiceMetadataUpdate carries user-editable service fields.
type ServiceMetadataUpdate struct {
	Name                     *string      `json:"name"`
	Type                     *ServiceType `json:"type"`
	Provider                 *Provider    `json:"provider"`
	ProviderInternalID       *string      `json:"providerInternalId"`
	ProviderProjectID        *string      `json:"providerProjectId"`
	URL                      *string      `json:"url"`
	DashboardURL             *string      `json:"dashboardUrl"`
	Region                   *string      `json:"region"`
	Notes                    *string      `json:"notes"`
	ExpectedFrequencyMinutes *int         `json:"expectedFrequencyMinutes"`
}
