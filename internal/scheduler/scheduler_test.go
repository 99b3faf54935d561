package scheduler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func noop(context.Context) error { return nil }

func testJobs(t *testing.T) []Job {
	t.Helper()
	jobs, err := DefaultJobs(Actions{
		SyncHealth:       noop,
		SyncDeploys:      noop,
		SyncDBHealth:     noop,
		AutomationHealth: noop,
		MetricsCleanup:   noop,
	})
	if err != nil {
		t.Fatalf("default jobs: %v", err)
	}
	return jobs
}

func TestDefaultJobsRequiresEveryAction(t *testing.T) {
	if _, err := DefaultJobs(Actions{SyncHealth: noop}); err == nil {
		t.Fatal("expected error for missing actions")
	}
	if got := len(testJobs(t)); got != len(Table) {
		t.Fatalf("expected %d jobs, got %d", len(Table), got)
	}
}

func TestLoadAndApplyOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	doc := "jobs:\n  health-sync:\n    schedule: \"*/2 * * * *\"\n  metrics-cleanup:\n    enabled: false\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	overrides, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	jobs, err := Apply(testJobs(t), overrides)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(jobs) != len(Table)-1 {
		t.Fatalf("expected cleanup disabled, got %d jobs", len(jobs))
	}
	for _, j := range jobs {
		if j.Name == JobMetricsCleanup {
			t.Fatal("disabled job still present")
		}
		if j.Name == JobHealthSync && j.Spec != "*/2 * * * *" {
			t.Fatalf("expected overridden spec, got %q", j.Spec)
		}
	}
}

func TestApplyRejectsUnknownAndInvalid(t *testing.T) {
	_, err := Apply(testJobs(t), Overrides{Jobs: map[string]Override{"nightly-report": {Schedule: "0 1 * * *"}}})
	if err == nil || !strings.Contains(err.Error(), "nightly-report") {
		t.Fatalf("expected unknown job error, got %v", err)
	}
	_, err = Apply(testJobs(t), Overrides{Jobs: map[string]Override{JobDeploySync: {Schedule: "every hour"}}})
	if err == nil {
		t.Fatal("expected invalid spec error")
	}
}

func TestLoadOverridesEmptyPath(t *testing.T) {
	o, err := LoadOverrides("")
	if err != nil || len(o.Jobs) != 0 {
		t.Fatalf("expected empty overrides, got %+v %v", o, err)
	}
}

func TestTriggerRunsNamedJob(t *testing.T) {
	ran := ""
	jobs := []Job{
		{Entry: Entry{Name: JobHealthSync, Spec: "*/5 * * * *"}, Run: func(context.Context) error { ran = JobHealthSync; return nil }},
	}
	s, err := New(context.Background(), jobs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Trigger(JobHealthSync); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if ran != JobHealthSync {
		t.Fatalf("expected job to run, got %q", ran)
	}
	if err := s.Trigger("missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
	s.Start()
	<-s.Stop().Done()
}

func TestTriggerSkipsWhileJobRunning(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	jobs := []Job{
		{Entry: Entry{Name: JobHealthSync, Spec: "*/5 * * * *"}, Run: func(context.Context) error {
			runs.Add(1)
			close(started)
			<-release
			return nil
		}},
	}
	s, err := New(context.Background(), jobs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	first := make(chan error, 1)
	go func() { first <- s.Trigger(JobHealthSync) }()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("expected first trigger to start the job")
	}

	if err := s.Trigger(JobHealthSync); err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected overlapping trigger to be skipped, got %d runs", got)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(JobMetricsCleanup)
	if !ok || e.Path != "/internal/sync/cleanup" || e.Spec != "0 2 * * *" {
		t.Fatalf("unexpected entry %+v", e)
	}
}
