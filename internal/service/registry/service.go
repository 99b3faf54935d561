// Package registry manages the user-editable side of services. Status
// fields are owned by the sync paths and cannot be written here.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
)

// Store is the metadata half of the service repository.
type Store interface {
	CreateService(ctx context.Context, service *domain.Service) error
	GetServiceByID(ctx context.Context, serviceID string) (*domain.Service, error)
	ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error)
	UpdateServiceMetadata(ctx context.Context, serviceID string, update domain.ServiceMetadataUpdate) (*domain.Service, error)
	DeleteService(ctx context.Context, serviceID string) error
}

// ProjectLookup verifies a parent project exists.
type ProjectLookup interface {
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
}

// CreateInput holds the fields accepted when registering a service.
type CreateInput struct {
	ProjectID                string             `json:"projectId"`
	Name                     string             `json:"name"`
	Type                     domain.ServiceType `json:"type"`
	Provider                 domain.Provider    `json:"provider"`
	ProviderInternalID       string             `json:"providerInternalId"`
	ProviderProjectID        string             `json:"providerProjectId"`
	URL                      string             `json:"url"`
	DashboardURL             string             `json:"dashboardUrl"`
	Region                   string             `json:"region"`
	Notes                    string             `json:"notes"`
	ExpectedFrequencyMinutes *int               `json:"expectedFrequencyMinutes"`
}

// Service is the registry facade.
type Service struct {
	store    Store
	projects ProjectLookup
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a registry service.
func New(store Store, projects ProjectLookup, logger *slog.Logger) Service {
	return Service{store: store, projects: projects, logger: logger, now: time.Now}
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, repository.ErrInvalidArgument)
}

// Create registers a service. New services always start unknown.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Service, error) {
	svc := &domain.Service{
		ProjectID:                strings.TrimSpace(input.ProjectID),
		Name:                     strings.TrimSpace(input.Name),
		Type:                     input.Type,
		Provider:                 input.Provider,
		ProviderInternalID:       strings.TrimSpace(input.ProviderInternalID),
		ProviderProjectID:        strings.TrimSpace(input.ProviderProjectID),
		URL:                      strings.TrimSpace(input.URL),
		DashboardURL:             strings.TrimSpace(input.DashboardURL),
		Region:                   strings.TrimSpace(input.Region),
		Notes:                    input.Notes,
		ExpectedFrequencyMinutes: input.ExpectedFrequencyMinutes,
	}
	if svc.ProjectID == "" {
		return nil, invalid("project id is required")
	}
	if err := validate(svc); err != nil {
		return nil, err
	}
	if _, err := s.projects.GetProjectByID(ctx, svc.ProjectID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	svc.ID = uuid.NewString()
	svc.Status = domain.StatusUnknown
	svc.CreatedAt = now
	svc.UpdatedAt = now
	if err := s.store.CreateService(ctx, svc); err != nil {
		return nil, err
	}
	s.logger.Info("service registered", "service_id", svc.ID, "provider", svc.Provider, "provider_internal_id", svc.ProviderInternalID)
	return svc, nil
}

func validate(svc *domain.Service) error {
	if svc.Name == "" {
		return invalid("service name is required")
	}
	if !svc.Type.Valid() {
		return invalid("unknown service type")
	}
	if !svc.Provider.Valid() {
		return invalid("unknown provider")
	}
	if svc.ProviderInternalID == "" {
		return invalid("provider internal id is required")
	}
	if svc.ExpectedFrequencyMinutes != nil && *svc.ExpectedFrequencyMinutes < 0 {
		return invalid("expected frequency must not be negative")
	}
	return nil
}

// Get returns a service by id.
func (s Service) Get(ctx context.Context, serviceID string) (*domain.Service, error) {
	return s.store.GetServiceByID(ctx, serviceID)
}

// List returns services matching filter.
func (s Service) List(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	return s.store.ListServices(ctx, filter)
}

// Update applies metadata changes.
func (s Service) Update(ctx context.Context, serviceID string, update domain.ServiceMetadataUpdate) (*domain.Service, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, invalid("service name must not be empty")
	}
	if update.Type != nil && !update.Type.Valid() {
		return nil, invalid("unknown service type")
	}
	if update.Provider != nil && !update.Provider.Valid() {
		return nil, invalid("unknown provider")
	}
	if update.ProviderInternalID != nil && strings.TrimSpace(*update.ProviderInternalID) == "" {
		return nil, invalid("provider internal id must not be empty")
	}
	if update.ExpectedFrequencyMinutes != nil && *update.ExpectedFrequencyMinutes < 0 {
		return nil, invalid("expected frequency must not be negative")
	}
	return s.store.UpdateServiceMetadata(ctx, serviceID, update)
}

// Delete removes a service with its metrics and env vars.
func (s Service) Delete(ctx context.Context, serviceID string) error {
	if err := s.store.DeleteService(ctx, serviceID); err != nil {
		return err
	}
	s.logger.Info("service deleted", "service_id", serviceID)
	return nil
}
