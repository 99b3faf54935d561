package automation

import (
	"context"
	"testing"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
)

func automationService(id string, every int, lastRun *time.Time) domain.Service {
	svc := domain.Service{ID: id, Type: domain.ServiceTypeAutomation, Provider: domain.ProviderMake, Status: domain.StatusOK, LastRunAt: lastRun}
	if every != 0 {
		svc.ExpectedFrequencyMinutes = &every
	}
	return svc
}

func TestDetectorMarksOverdueAutomations(t *testing.T) {
	now := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
	overdue := now.Add(-130 * time.Minute)
	recent := now.Add(-90 * time.Minute)

	store := newMemStore(
		automationService("overdue", 60, &overdue),
		automationService("recent", 60, &recent),
		automationService("never", 60, nil),
		automationService("unscheduled", 0, nil),
		domain.Service{ID: "web", Type: domain.ServiceTypeBackend},
	)
	detector := NewDetector(store, nil, discard())
	detector.now = func() time.Time { return now }

	report, err := detector.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Checked != 3 || report.Marked != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	for _, id := range []string{"overdue", "never"} {
		update, ok := store.updates[id]
		if !ok || *update.Status != domain.StatusStale {
			t.Fatalf("expected %s stale, got %+v", id, update)
		}
		if update.LastCheckedAt == nil || !update.LastCheckedAt.Equal(now) {
			t.Fatalf("expected %s lastCheckedAt %s", id, now)
		}
	}
	if _, ok := store.updates["recent"]; ok {
		t.Fatal("expected recent automation untouched")
	}
}
