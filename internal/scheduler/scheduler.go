// Package scheduler runs the background passes on a named cron table.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Job names.
const (
	JobHealthSync       = "health-sync"
	JobDeploySync       = "deploy-sync"
	JobDBHealthSync     = "db-health-sync"
	JobAutomationHealth = "automation-health"
	JobMetricsCleanup   = "metrics-cleanup"
)

// Entry is one row of the cron table. Path is the internal trigger
// endpoint an external caller can POST instead.
type Entry struct {
	Name string
	Spec string
	Path string
}

// Table is the default schedule, evaluated in UTC.
var Table = []Entry{
	{Name: JobHealthSync, Spec: "*/5 * * * *", Path: "/internal/sync/health"},
	{Name: JobDeploySync, Spec: "*/15 * * * *", Path: "/internal/sync/deploys"},
	{Name: JobDBHealthSync, Spec: "0 * * * *", Path: "/internal/sync/db-health"},
	{Name: JobAutomationHealth, Spec: "*/12 * * * *", Path: "/internal/sync/automation-health"},
	{Name: JobMetricsCleanup, Spec: "0 2 * * *", Path: "/internal/sync/cleanup"},
}

// Lookup returns the table entry for name.
func Lookup(name string) (Entry, bool) {
	for _, e := range Table {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Job binds an entry to its action.
type Job struct {
	Entry
	Run func(ctx context.Context) error
}

// Override adjusts one job from the YAML file.
type Override struct {
	Schedule string `yaml:"schedule"`
	Enabled  *bool  `yaml:"enabled"`
}

// Overrides is the YAML document shape.
type Overrides struct {
	Jobs map[string]Override `yaml:"jobs"`
}

// LoadOverrides reads path. An empty path yields no overrides.
func LoadOverrides(path string) (Overrides, error) {
	var o Overrides
	if path == "" {
		return o, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("read scheduler config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return o, fmt.Errorf("parse scheduler config: %w", err)
	}
	return o, nil
}

// Apply returns jobs with overrides applied and disabled jobs removed.
// Unknown job names and invalid specs are errors.
func Apply(jobs []Job, o Overrides) ([]Job, error) {
	known := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		known[j.Name] = true
	}
	for name := range o.Jobs {
		if !known[name] {
			return nil, fmt.Errorf("scheduler config: unknown job %q", name)
		}
	}
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if ov, ok := o.Jobs[j.Name]; ok {
			if ov.Enabled != nil && !*ov.Enabled {
				continue
			}
			if ov.Schedule != "" {
				j.Spec = ov.Schedule
			}
		}
		if _, err := cron.ParseStandard(j.Spec); err != nil {
			return nil, fmt.Errorf("scheduler config: job %s: %w", j.Name, err)
		}
		out = append(out, j)
	}
	return out, nil
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	logger  *slog.Logger
	jobs    []Job
	entries map[string]cron.EntryID
}

// New registers jobs. Runs of the same job never overlap; ctx bounds every
// run.
func New(ctx context.Context, jobs []Job, logger *slog.Logger) (*Scheduler, error) {
	if len(jobs) == 0 {
		return nil, errors.New("scheduler: no jobs")
	}
	log := logger.With("component", "scheduler")
	adapter := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	s := &Scheduler{cron: c, ctx: ctx, logger: log, jobs: jobs, entries: make(map[string]cron.EntryID, len(jobs))}
	for _, j := range jobs {
		job := j
		id, err := c.AddFunc(job.Spec, func() { s.run(job) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.Name, err)
		}
		s.entries[job.Name] = id
	}
	return s, nil
}

func (s *Scheduler) run(job Job) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	s.logger.Info("job started", "job", job.Name)
	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("job failed", "job", job.Name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("job completed", "job", job.Name, "duration", time.Since(start))
}

// Start begins dispatching in the background.
func (s *Scheduler) Start() {
	for _, j := range s.jobs {
		s.logger.Info("job scheduled", "job", j.Name, "spec", j.Spec)
	}
	s.cron.Start()
}

// Stop halts dispatching. The returned context is done once running jobs
// finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Trigger runs a job now through the same chain as its scheduled runs, so
// it is skipped while that job is already running. It returns once the run
// finishes or is skipped.
func (s *Scheduler) Trigger(name string) error {
	id, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	entry := s.cron.Entry(id)
	if entry.WrappedJob == nil {
		return fmt.Errorf("scheduler: job %q is not registered", name)
	}
	s.logger.Info("job triggered", "job", name)
	entry.WrappedJob.Run()
	return nil
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
