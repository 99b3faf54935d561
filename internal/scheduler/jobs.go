package scheduler

import (
	"context"
	"fmt"
)

// Actions are the operations the default table drives.
type Actions struct {
	SyncHealth       func(ctx context.Context) error
	SyncDeploys      func(ctx context.Context) error
	SyncDBHealth     func(ctx context.Context) error
	AutomationHealth func(ctx context.Context) error
	MetricsCleanup   func(ctx context.Context) error
}

// DefaultJobs binds Table to actions.
func DefaultJobs(a Actions) ([]Job, error) {
	byName := map[string]func(context.Context) error{
		JobHealthSync:       a.SyncHealth,
		JobDeploySync:       a.SyncDeploys,
		JobDBHealthSync:     a.SyncDBHealth,
		JobAutomationHealth: a.AutomationHealth,
		JobMetricsCleanup:   a.MetricsCleanup,
	}
	jobs := make([]Job, 0, len(Table))
	for _, e := range Table {
		run := byName[e.Name]
		if run == nil {
			return nil, fmt.Errorf("scheduler: no action for %s", e.Name)
		}
		jobs = append(jobs, Job{Entry: e, Run: run})
	}
	return jobs, nil
}
