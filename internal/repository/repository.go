package repository

import (
	"context"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// ProjectRepository persists projects.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	UpdateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	ListProjects(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	CountProjects(ctx context.Context, filter domain.ProjectFilter) (int, error)
}

// ServiceRepository is the service registry. Status fields are only
// written through UpdateServiceStatus.
type ServiceRepository interface {
	CreateService(ctx context.Context, service *domain.Service) error
	GetServiceByID(ctx context.Context, serviceID string) (*domain.Service, error)
	GetServiceByProviderIdentity(ctx context.Context, provider domain.Provider, internalID string) (*domain.Service, error)
	ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error)
	UpdateServiceMetadata(ctx context.Context, serviceID string, update domain.ServiceMetadataUpdate) (*domain.Service, error)
	UpdateServiceStatus(ctx context.Context, serviceID string, update domain.ServiceStatusUpdate) error
	DeleteService(ctx context.Context, serviceID string) error
	CountServices(ctx context.Context, filter domain.ServiceFilter) (int, error)
	CountServicesByField(ctx context.Context, field string) (map[string]int, error)
}

// MetricRepository is the append-only metric store.
type MetricRepository interface {
	InsertMetric(ctx context.Context, metric *domain.Metric) error
	ListMetrics(ctx context.Context, filter domain.MetricFilter) ([]domain.Metric, error)
	DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WorkItemRepository persists work items.
type WorkItemRepository interface {
	CreateWorkItem(ctx context.Context, item *domain.WorkItem) error
	UpdateWorkItem(ctx context.Context, item *domain.WorkItem) error
	GetWorkItemByID(ctx context.Context, itemID string) (*domain.WorkItem, error)
	ListWorkItems(ctx context.Context, filter domain.WorkItemFilter) ([]domain.WorkItem, error)
	DeleteWorkItem(ctx context.Context, itemID string) error
	CountWorkItems(ctx context.Context, filter domain.WorkItemFilter) (int, error)
	CountWorkItemsByField(ctx context.Context, field string) (map[string]int, error)
}

// EnvVarRepository persists per-service configuration values.
type EnvVarRepository interface {
	UpsertEnvVar(ctx context.Context, envVar *domain.EnvVar) error
	ListEnvVarsByService(ctx context.Context, serviceID string) ([]domain.EnvVar, error)
	ListEnvVarsByProject(ctx context.Context, projectID string) ([]domain.EnvVar, error)
	DeleteEnvVar(ctx context.Context, serviceID, key string) error
}
