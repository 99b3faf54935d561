package project

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

// CreateInput encapsulates project creation attributes.
type CreateInput struct {
	Name              string     `json:"name"`
	Code              string     `json:"code"`
	Description       string     `json:"description"`
	Owner             string     `json:"owner"`
	Status            string     `json:"status"`
	LifecycleStage    string     `json:"lifecycleStage"`
	Priority          string     `json:"priority"`
	NextAction        string     `json:"nextAction"`
	TargetReleaseDate *time.Time `json:"targetReleaseDate"`
	Tags              []string   `json:"tags"`
}

// UpdateInput holds optional project changes. ClearTargetRelease removes
// the release date.
type UpdateInput struct {
	Name               *string    `json:"name"`
	Code               *string    `json:"code"`
	Description        *string    `json:"description"`
	Owner              *string    `json:"owner"`
	Status             *string    `json:"status"`
	LifecycleStage     *string    `json:"lifecycleStage"`
	Priority           *string    `json:"priority"`
	NextAction         *string    `json:"nextAction"`
	TargetReleaseDate  *time.Time `json:"targetReleaseDate"`
	ClearTargetRelease bool       `json:"clearTargetReleaseDate"`
	Tags               *[]string  `json:"tags"`
}

// Children lists the records attached to a project.
type Children interface {
	ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error)
	ListEnvVarsByProject(ctx context.Context, projectID string) ([]domain.EnvVar, error)
	ListWorkItems(ctx context.Context, filter domain.WorkItemFilter) ([]domain.WorkItem, error)
}

// Service orchestrates project management.
type Service struct {
	projects repository.ProjectRepository
	children Children
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a project service.
func New(projects repository.ProjectRepository, children Children, logger *slog.Logger) Service {
	return Service{projects: projects, children: children, logger: logger, now: time.Now}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), repository.ErrInvalidArgument)
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return invalid("%s must be one of %s", field, strings.Join(allowed, ", "))
}

func validate(p *domain.Project) error {
	if p.Name == "" {
		return invalid("project name is required")
	}
	if p.Code == "" {
		return invalid("project code is required")
	}
	if p.Owner == "" {
		return invalid("project owner is required")
	}
	if p.NextAction == "" {
		return invalid("next action is required")
	}
	if err := oneOf("status", p.Status, domain.ProjectActive, domain.ProjectPaused, domain.ProjectDeprecated); err != nil {
		return err
	}
	if err := oneOf("lifecycleStage", p.LifecycleStage,
		domain.StageIdea, domain.StagePlanned, domain.StageInDevelopment, domain.StageReadyForDeploy,
		domain.StageLive, domain.StageMaintenance, domain.StageOnHold); err != nil {
		return err
	}
	return oneOf("priority", p.Priority, domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func defaultString(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

// Create registers a new project.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Project, error) {
	now := s.now().UTC()
	p := &domain.Project{
		ID:                uuid.NewString(),
		Name:              strings.TrimSpace(input.Name),
		Code:              strings.ToUpper(strings.TrimSpace(input.Code)),
		Description:       strings.TrimSpace(input.Description),
		Owner:             strings.TrimSpace(input.Owner),
		Status:            defaultString(input.Status, domain.ProjectActive),
		LifecycleStage:    defaultString(input.LifecycleStage, domain.StageIdea),
		Priority:          defaultString(input.Priority, domain.PriorityMedium),
		NextAction:        strings.TrimSpace(input.NextAction),
		TargetReleaseDate: input.TargetReleaseDate,
		Tags:              cleanTags(input.Tags),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", p.ID, "code", p.Code)
	return p, nil
}

// Get returns a project by id.
func (s Service) Get(ctx context.Context, projectID string) (*domain.Project, error) {
	return s.projects.GetProjectByID(ctx, projectID)
}

// List returns projects matching filter, newest first.
func (s Service) List(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx, filter)
}

// Details returns a project with its services, env vars and work items.
func (s Service) Details(ctx context.Context, projectID string) (*domain.ProjectDetails, error) {
	p, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	services, err := s.children.ListServices(ctx, domain.ServiceFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	envVars, err := s.children.ListEnvVarsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list env vars: %w", err)
	}
	items, err := s.children.ListWorkItems(ctx, domain.WorkItemFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return &domain.ProjectDetails{Project: *p, Services: services, EnvVars: envVars, WorkItems: items}, nil
}

// Update applies the non-nil fields of input.
func (s Service) Update(ctx context.Context, projectID string, input UpdateInput) (*domain.Project, error) {
	p, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&p.Name, input.Name)
	set(&p.Description, input.Description)
	set(&p.Owner, input.Owner)
	set(&p.Status, input.Status)
	set(&p.LifecycleStage, input.LifecycleStage)
	set(&p.Priority, input.Priority)
	set(&p.NextAction, input.NextAction)
	if input.Code != nil {
		p.Code = strings.ToUpper(strings.TrimSpace(*input.Code))
	}
	if input.ClearTargetRelease {
		p.TargetReleaseDate = nil
	} else if input.TargetReleaseDate != nil {
		p.TargetReleaseDate = input.TargetReleaseDate
	}
	if input.Tags != nil {
		p.Tags = cleanTags(*input.Tags)
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a project. Services, env vars, metrics and work items
// are removed by the store's cascade.
func (s Service) Delete(ctx context.Context, projectID string) error {
	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", projectID)
	return nil
}
