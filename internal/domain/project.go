package domain

import "time"

// Project status values.
const (
	ProjectActive     = "active"
	ProjectPaused     = "paused"
	ProjectDeprecated = "deprecated"
)

// Lifecycle stages a project moves through.
const (
	StageIdea           = "idea"
	StagePlanned        = "planned"
	StageInDevelopment  = "in_development"
	StageReadyForDeploy = "ready_for_deploy"
	StageLive           = "live"
	StageMaintenance    = "maintenance"
	StageOnHold         = "on_hold"
)

// Priority values shared by projects and work items.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Project groups services and work items.
type Project struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Code              string     `json:"code"`
	Description       string     `json:"description,omitempty"`
	Owner             string     `json:"owner,omitempty"`
	Status            string     `json:"status"`
	LifecycleStage    string     `json:"lifecycleStage"`
	Priority          string     `json:"priority"`
	NextAction        string     `json:"nextAction,omitempty"`
	TargetReleaseDate *time.Time `json:"targetReleaseDate,omitempty"`
	Tags              []string   `json:"tags"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Status         string
	LifecycleStage string
	Priority       string
	Tag            string
}

// ProjectDetails bundles a project with its children.
type ProjectDetails struct {
	Project   Project    `json:"project"`
	Services  []Service  `json:"services"`
	EnvVars   []EnvVar   `json:"envVars"`
	WorkItems []WorkItem `json:"workItems"`
}
