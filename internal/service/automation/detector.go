package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/telemetry"
)

// StaleReport summarizes a staleness run.
type StaleReport struct {
	Checked    int      `json:"checked"`
	Marked     int      `json:"marked"`
	ServiceIDs []string `json:"serviceIds,omitempty"`
}

// Detector escalates automation services that missed their expected runs.
type Detector struct {
	services StatusStore
	notify   Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewDetector constructs a Detector.
func NewDetector(services StatusStore, notify Notifier, logger *slog.Logger) *Detector {
	return &Detector{services: services, notify: notify, logger: logger.With("component", "automation_staleness"), now: time.Now}
}

// Run marks services stale when more than twice their expected interval
// has elapsed since the last run. It never clears stale.
func (d *Detector) Run(ctx context.Context) (StaleReport, error) {
	var report StaleReport
	services, err := d.services.ListServices(ctx, domain.ServiceFilter{Type: domain.ServiceTypeAutomation})
	if err != nil {
		return report, fmt.Errorf("list automation services: %w", err)
	}

	now := d.now().UTC()
	for _, svc := range services {
		if svc.ExpectedFrequencyMinutes == nil || *svc.ExpectedFrequencyMinutes <= 0 {
			continue
		}
		report.Checked++
		interval := time.Duration(*svc.ExpectedFrequencyMinutes) * time.Minute
		var last time.Time
		if svc.LastRunAt != nil {
			last = *svc.LastRunAt
		} else {
			last = time.Unix(0, 0)
		}
		if now.Sub(last) <= 2*interval {
			continue
		}

		stale := domain.StatusStale
		checked := now
		if err := d.services.UpdateServiceStatus(ctx, svc.ID, domain.ServiceStatusUpdate{Status: &stale, LastCheckedAt: &checked}); err != nil {
			d.logger.Error("mark stale failed", "service_id", svc.ID, "error", err)
			continue
		}
		if d.notify != nil && svc.Status != stale {
			d.notify.StatusChanged(ctx, svc, stale)
		}
		report.Marked++
		report.ServiceIDs = append(report.ServiceIDs, svc.ID)
		d.logger.Info("automation marked stale", "service_id", svc.ID, "service", svc.Name, "expected_minutes", *svc.ExpectedFrequencyMinutes)
	}
	telemetry.ObserveStale(report.Marked)
	return report, nil
}
