// Package automation ingests run reports from the automation platform and
// flags automations that stopped reporting.
package automation

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
	"github.com/dotanscherzer/projects-Dasboard/internal/status"
	"github.com/dotanscherzer/projects-Dasboard/internal/telemetry"
)

// Webhook outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeUnknown = "unknown_scenario"
	OutcomeInvalid = "invalid"
)

var (
	// ErrMissingSignature is returned when a secret is configured but the
	// request carries no signature.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature is returned on signature mismatch.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// StatusStore is the registry surface used by the ingestor and detector.
type StatusStore interface {
	GetServiceByProviderIdentity(ctx context.Context, provider domain.Provider, internalID string) (*domain.Service, error)
	ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error)
	UpdateServiceStatus(ctx context.Context, serviceID string, update domain.ServiceStatusUpdate) error
}

// MetricRecorder appends observations.
type MetricRecorder interface {
	Record(ctx context.Context, serviceID, name string, value any, collectedAt time.Time) error
}

// Notifier is told about persisted status transitions.
type Notifier interface {
	StatusChanged(ctx context.Context, service domain.Service, next domain.ServiceStatus)
}

// Ingestor applies run reports to automation services.
type Ingestor struct {
	services StatusStore
	metrics  MetricRecorder
	notify   Notifier
	secret   []byte
	logger   *slog.Logger
	now      func() time.Time
}

// NewIngestor constructs an Ingestor. An empty secret disables signature
// checks.
func NewIngestor(services StatusStore, metrics MetricRecorder, notify Notifier, secret string, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		services: services,
		metrics:  metrics,
		notify:   notify,
		secret:   []byte(strings.TrimSpace(secret)),
		logger:   logger.With("component", "automation_webhook"),
		now:      time.Now,
	}
}

// VerifySignature checks the hex HMAC-SHA256 of payload when a secret is
// configured.
func (i *Ingestor) VerifySignature(payload []byte, provided string) error {
	if len(i.secret) == 0 {
		return nil
	}
	provided = strings.TrimPrefix(strings.TrimSpace(provided), "sha256=")
	if provided == "" {
		return ErrMissingSignature
	}
	hasher := hmac.New(sha256.New, i.secret)
	hasher.Write(payload)
	expected := hex.EncodeToString(hasher.Sum(nil))
	if !hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// HandlePayload decodes and ingests a raw webhook body.
func (i *Ingestor) HandlePayload(ctx context.Context, payload []byte) error {
	report, err := DecodeReport(payload)
	if err != nil {
		telemetry.ObserveWebhook(OutcomeInvalid)
		return err
	}
	return i.Ingest(ctx, report)
}

// Ingest applies a run report. Reports for scenarios with no registered
// service are logged and dropped.
func (i *Ingestor) Ingest(ctx context.Context, report Report) error {
	log := i.logger.With("scenario_id", report.ScenarioID, "run_status", report.Status)

	svc, err := i.services.GetServiceByProviderIdentity(ctx, domain.ProviderMake, report.ScenarioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("no service registered for scenario", "scenario_name", report.ScenarioName)
			telemetry.ObserveWebhook(OutcomeUnknown)
			return nil
		}
		return fmt.Errorf("lookup scenario %s: %w", report.ScenarioID, err)
	}

	finished := report.FinishedAt.UTC()
	now := i.now().UTC()
	run := report.Status
	next := status.Automation(run)
	update := domain.ServiceStatusUpdate{
		Status:        &next,
		LastCheckedAt: &now,
		LastRunAt:     &finished,
		LastRunStatus: &run,
	}
	if err := i.services.UpdateServiceStatus(ctx, svc.ID, update); err != nil {
		return fmt.Errorf("update service %s: %w", svc.ID, err)
	}
	if i.notify != nil && svc.Status != next {
		i.notify.StatusChanged(ctx, *svc, next)
	}

	if err := i.metrics.Record(ctx, svc.ID, domain.MetricAutomationStatus, string(run), finished); err != nil {
		return fmt.Errorf("record %s: %w", domain.MetricAutomationStatus, err)
	}
	if err := i.metrics.Record(ctx, svc.ID, domain.MetricAutomationDurationMS, report.Duration().Milliseconds(), finished); err != nil {
		return fmt.Errorf("record %s: %w", domain.MetricAutomationDurationMS, err)
	}
	if report.ErrorMessage != "" {
		if err := i.metrics.Record(ctx, svc.ID, domain.MetricAutomationError, report.ErrorMessage, finished); err != nil {
			return fmt.Errorf("record %s: %w", domain.MetricAutomationError, err)
		}
	}

	telemetry.ObserveWebhook(OutcomeApplied)
	log.Info("automation run recorded", "service_id", svc.ID, "status", next)
	return nil
}
