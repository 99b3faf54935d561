package summary

import (
	"context"
	"fmt"
	"sort"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
)

const highlightLimit = 10

// ProjectCounter is the project query surface.
type ProjectCounter interface {
	ListProjects(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, error)
	CountProjects(ctx context.Context, filter domain.ProjectFilter) (int, error)
}

// ServiceCounter is the service query surface.
type ServiceCounter interface {
	ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error)
	CountServices(ctx context.Context, filter domain.ServiceFilter) (int, error)
	CountServicesByField(ctx context.Context, field string) (map[string]int, error)
}

// WorkItemCounter is the work item query surface.
type WorkItemCounter interface {
	CountWorkItems(ctx context.Context, filter domain.WorkItemFilter) (int, error)
	CountWorkItemsByField(ctx context.Context, field string) (map[string]int, error)
}

// Service builds the dashboard overview.
type Service struct {
	projects  ProjectCounter
	services  ServiceCounter
	workItems WorkItemCounter
}

// New returns a summary service.
func New(projects ProjectCounter, services ServiceCounter, workItems WorkItemCounter) Service {
	return Service{projects: projects, services: services, workItems: workItems}
}

// Build aggregates counts and highlights.
func (s Service) Build(ctx context.Context) (*domain.Summary, error) {
	var (
		out domain.Summary
		err error
	)

	counts := []struct {
		dst    *int
		filter domain.ProjectFilter
	}{
		{&out.Projects.Total, domain.ProjectFilter{}},
		{&out.Projects.Active, domain.ProjectFilter{Status: domain.ProjectActive}},
		{&out.Projects.Live, domain.ProjectFilter{LifecycleStage: domain.StageLive}},
		{&out.Projects.InDevelopment, domain.ProjectFilter{LifecycleStage: domain.StageInDevelopment}},
	}
	for _, c := range counts {
		if *c.dst, err = s.projects.CountProjects(ctx, c.filter); err != nil {
			return nil, fmt.Errorf("count projects: %w", err)
		}
	}

	if out.Services.Total, err = s.services.CountServices(ctx, domain.ServiceFilter{}); err != nil {
		return nil, fmt.Errorf("count services: %w", err)
	}
	if out.Services.ByStatus, err = s.services.CountServicesByField(ctx, "status"); err != nil {
		return nil, fmt.Errorf("count services by status: %w", err)
	}
	if out.Services.ByType, err = s.services.CountServicesByField(ctx, "type"); err != nil {
		return nil, fmt.Errorf("count services by type: %w", err)
	}

	if out.WorkItems.Total, err = s.workItems.CountWorkItems(ctx, domain.WorkItemFilter{}); err != nil {
		return nil, fmt.Errorf("count work items: %w", err)
	}
	if out.WorkItems.ByStatus, err = s.workItems.CountWorkItemsByField(ctx, "status"); err != nil {
		return nil, fmt.Errorf("count work items by status: %w", err)
	}

	high, err := s.projects.ListProjects(ctx, domain.ProjectFilter{Priority: domain.PriorityHigh})
	if err != nil {
		return nil, fmt.Errorf("list high priority projects: %w", err)
	}
	sort.SliceStable(high, func(i, j int) bool { return high[i].UpdatedAt.After(high[j].UpdatedAt) })
	out.HighPriorityProjects = limit(high)

	failing, err := s.services.ListServices(ctx, domain.ServiceFilter{Status: domain.StatusFailing})
	if err != nil {
		return nil, fmt.Errorf("list failing services: %w", err)
	}
	sort.SliceStable(failing, func(i, j int) bool { return failing[i].UpdatedAt.After(failing[j].UpdatedAt) })
	out.FailingServices = limit(failing)

	return &out, nil
}

func limit[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	if len(items) > highlightLimit {
		return items[:highlightLimit]
	}
	return items
}
