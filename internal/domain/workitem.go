package domain

import "time"

// Work item types.
const (
	WorkItemDev        = "dev"
	WorkItemAutomation = "automation"
	WorkItemInfra      = "infra"
	WorkItemContent    = "content"
	WorkItemOther      = "other"
)

// Work item states.
const (
	WorkItemTodo       = "todo"
	WorkItemInProgress = "in_progress"
	WorkItemBlocked    = "blocked"
	WorkItemDone       = "done"
)

// WorkItem is a task attached to a project.
type WorkItem struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	BlockedBy   *string    `json:"blockedBy,omitempty"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// WorkItemFilter narrows work item listings.
type WorkItemFilter struct {
	ProjectID string
	Status    string
	Type      string
	Priority  string
}
