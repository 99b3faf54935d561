package workitem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
)

// ProjectLookup verifies a parent project exists.
type ProjectLookup interface {
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
}

// CreateInput holds the fields of a new work item.
type CreateInput struct {
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	BlockedBy   string     `json:"blockedBy"`
	Tags        []string   `json:"tags"`
}

// UpdateInput holds optional changes. An empty BlockedBy clears the
// dependency; a nil one leaves it untouched.
type UpdateInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Type        *string    `json:"type"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	BlockedBy   *string    `json:"blockedBy"`
	Tags        *[]string  `json:"tags"`
}

// ErrBlockerNotFound is returned when blockedBy references a missing item.
var ErrBlockerNotFound = fmt.Errorf("blocking work item not found: %w", repository.ErrNotFound)

// Service orchestrates work item management.
type Service struct {
	items    repository.WorkItemRepository
	projects ProjectLookup
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a work item service.
func New(items repository.WorkItemRepository, projects ProjectLookup, logger *slog.Logger) Service {
	return Service{items: items, projects: projects, logger: logger, now: time.Now}
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, repository.ErrInvalidArgument)
}

func validate(item *domain.WorkItem) error {
	if item.Title == "" {
		return invalid("title is required")
	}
	switch item.Type {
	case domain.WorkItemDev, domain.WorkItemAutomation, domain.WorkItemInfra, domain.WorkItemContent, domain.WorkItemOther:
	default:
		return invalid("type must be one of dev, automation, infra, content, other")
	}
	switch item.Status {
	case domain.WorkItemTodo, domain.WorkItemInProgress, domain.WorkItemBlocked, domain.WorkItemDone:
	default:
		return invalid("status must be one of todo, in_progress, blocked, done")
	}
	switch item.Priority {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
	default:
		return invalid("priority must be one of low, medium, high")
	}
	return nil
}

func (s Service) checkBlocker(ctx context.Context, itemID, blockerID string) error {
	if blockerID == itemID {
		return invalid("work item cannot block itself")
	}
	if _, err := s.items.GetWorkItemByID(ctx, blockerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrBlockerNotFound
		}
		return err
	}
	return nil
}

func trimmedOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

// Create adds a work item to an existing project.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.WorkItem, error) {
	now := s.now().UTC()
	item := &domain.WorkItem{
		ID:          uuid.NewString(),
		ProjectID:   strings.TrimSpace(input.ProjectID),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Type:        strings.TrimSpace(input.Type),
		Status:      trimmedOr(input.Status, domain.WorkItemTodo),
		Priority:    trimmedOr(input.Priority, domain.PriorityMedium),
		DueDate:     input.DueDate,
		Tags:        input.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if item.ProjectID == "" {
		return nil, invalid("project id is required")
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if err := validate(item); err != nil {
		return nil, err
	}
	if _, err := s.projects.GetProjectByID(ctx, item.ProjectID); err != nil {
		return nil, err
	}
	if blocker := strings.TrimSpace(input.BlockedBy); blocker != "" {
		if err := s.checkBlocker(ctx, item.ID, blocker); err != nil {
			return nil, err
		}
		item.BlockedBy = &blocker
	}
	if err := s.items.CreateWorkItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Get returns a work item by id.
func (s Service) Get(ctx context.Context, itemID string) (*domain.WorkItem, error) {
	return s.items.GetWorkItemByID(ctx, itemID)
}

// List returns work items matching filter.
func (s Service) List(ctx context.Context, filter domain.WorkItemFilter) ([]domain.WorkItem, error) {
	return s.items.ListWorkItems(ctx, filter)
}

// Update applies the non-nil fields of input.
func (s Service) Update(ctx context.Context, itemID string, input UpdateInput) (*domain.WorkItem, error) {
	item, err := s.items.GetWorkItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&item.Title, input.Title)
	set(&item.Description, input.Description)
	set(&item.Type, input.Type)
	set(&item.Status, input.Status)
	set(&item.Priority, input.Priority)
	if input.DueDate != nil {
		item.DueDate = input.DueDate
	}
	if input.Tags != nil {
		item.Tags = *input.Tags
	}
	if input.BlockedBy != nil {
		blocker := strings.TrimSpace(*input.BlockedBy)
		if blocker == "" {
			item.BlockedBy = nil
		} else {
			if err := s.checkBlocker(ctx, item.ID, blocker); err != nil {
				return nil, err
			}
			item.BlockedBy = &blocker
		}
	}
	if err := validate(item); err != nil {
		return nil, err
	}
	item.UpdatedAt = s.now().UTC()
	if err := s.items.UpdateWorkItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes a work item. Items it blocked are released by the store.
func (s Service) Delete(ctx context.Context, itemID string) error {
	return s.items.DeleteWorkItem(ctx, itemID)
}
