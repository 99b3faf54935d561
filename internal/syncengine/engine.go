// Package syncengine polls provider status APIs and writes normalized
// results into the service registry and metric store.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/provider"
	"github.com/dotanscherzer/projects-Dasboard/internal/status"
	"github.com/dotanscherzer/projects-Dasboard/internal/telemetry"
	"github.com/dotanscherzer/projects-Dasboard/pkg/config"
)

// Pass names.
const (
	PassHealth   = "health"
	PassDeploys  = "deploys"
	PassDBHealth = "db-health"
)

// ServiceStore is the registry surface the engine needs.
type ServiceStore interface {
	ListServices(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error)
	UpdateServiceStatus(ctx context.Context, serviceID string, update domain.ServiceStatusUpdate) error
}

// MetricRecorder appends observations.
type MetricRecorder interface {
	Record(ctx context.Context, serviceID, name string, value any, collectedAt time.Time) error
}

// Notifier is told about status transitions after they are persisted.
type Notifier interface {
	StatusChanged(ctx context.Context, service domain.Service, next domain.ServiceStatus)
}

// Clients groups the provider integrations. A nil client is treated like
// missing credentials.
type Clients struct {
	Render  provider.Client
	Netlify provider.Client
	Atlas   provider.Client
}

// ProviderReport summarizes one provider within a pass.
type ProviderReport struct {
	Provider   domain.Provider `json:"provider"`
	Services   int             `json:"services"`
	Updated    int             `json:"updated"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	SkipReason string          `json:"skipReason,omitempty"`
}

// Report is the outcome of one pass.
type Report struct {
	Pass      string           `json:"pass"`
	Providers []ProviderReport `json:"providers"`
	StartedAt time.Time        `json:"startedAt"`
	Duration  time.Duration    `json:"durationNs"`
}

// Provider returns the entry for p, if present.
func (r Report) Provider(p domain.Provider) (ProviderReport, bool) {
	for _, pr := range r.Providers {
		if pr.Provider == p {
			return pr, true
		}
	}
	return ProviderReport{}, false
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithNotifier registers a status change notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notify = n }
}

// Engine runs the health, deploy and db-health passes.
type Engine struct {
	services ServiceStore
	metrics  MetricRecorder
	clients  Clients
	creds    config.ProviderCredentials
	notify   Notifier
	log      *slog.Logger
	now      func() time.Time
}

// New constructs an Engine.
func New(services ServiceStore, metrics MetricRecorder, clients Clients, creds config.ProviderCredentials, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		services: services,
		metrics:  metrics,
		clients:  clients,
		creds:    creds,
		log:      logger.With("component", "sync"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncHealth refreshes Render and Netlify health, then runs the db-health
// pass inline.
func (e *Engine) SyncHealth(ctx context.Context) (Report, error) {
	report := e.start(PassHealth)
	defer e.finish(&report)

	for _, p := range []domain.Provider{domain.ProviderRender, domain.ProviderNetlify} {
		pr, err := e.healthProvider(ctx, PassHealth, p)
		report.Providers = append(report.Providers, pr)
		if err != nil {
			return report, err
		}
	}
	pr, err := e.dbHealth(ctx)
	report.Providers = append(report.Providers, pr)
	return report, err
}

// SyncDBHealth refreshes Atlas cluster state.
func (e *Engine) SyncDBHealth(ctx context.Context) (Report, error) {
	report := e.start(PassDBHealth)
	defer e.finish(&report)

	pr, err := e.dbHealth(ctx)
	report.Providers = append(report.Providers, pr)
	return report, err
}

// SyncDeploys records the latest deploy of every Render and Netlify
// service. Fetch failures leave status untouched.
func (e *Engine) SyncDeploys(ctx context.Context) (Report, error) {
	report := e.start(PassDeploys)
	defer e.finish(&report)

	for _, p := range []domain.Provider{domain.ProviderRender, domain.ProviderNetlify} {
		pr, err := e.deploysProvider(ctx, p)
		report.Providers = append(report.Providers, pr)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (e *Engine) start(pass string) Report {
	e.log.Info("sync pass started", "pass", pass)
	return Report{Pass: pass, StartedAt: e.now().UTC()}
}

func (e *Engine) finish(report *Report) {
	report.Duration = e.now().UTC().Sub(report.StartedAt)
	telemetry.ObservePass(report.Pass, report.Duration)
	e.log.Info("sync pass completed", "pass", report.Pass, "duration", report.Duration)
}

// gate lists the provider's services and reports whether credentials allow
// the pass to proceed.
func (e *Engine) gate(ctx context.Context, pass string, p domain.Provider) ([]domain.Service, ProviderReport, provider.Client, error) {
	pr := ProviderReport{Provider: p}
	services, err := e.services.ListServices(ctx, domain.ServiceFilter{Provider: p})
	if err != nil {
		return nil, pr, nil, fmt.Errorf("list %s services: %w", p, err)
	}
	pr.Services = len(services)

	client, missing := e.clientFor(p)
	if missing != "" {
		if len(services) > 0 {
			e.log.Warn("provider credentials not configured, skipping", "pass", pass, "provider", p, "required", missing, "services", len(services))
			pr.Skipped = len(services)
			pr.SkipReason = missing + " not set"
			for range services {
				telemetry.ObserveService(pass, string(p), telemetry.OutcomeSkipped)
			}
		}
		return nil, pr, nil, nil
	}
	e.log.Debug("provider services enumerated", "pass", pass, "provider", p, "services", len(services))
	return services, pr, client, nil
}

func (e *Engine) clientFor(p domain.Provider) (provider.Client, string) {
	switch p {
	case domain.ProviderRender:
		if e.creds.RenderAPIKey == "" || e.clients.Render == nil {
			return nil, "RENDER_API_KEY"
		}
		return e.clients.Render, ""
	case domain.ProviderNetlify:
		if e.creds.NetlifyAPIToken == "" || e.clients.Netlify == nil {
			return nil, "NETLIFY_API_TOKEN"
		}
		return e.clients.Netlify, ""
	case domain.ProviderAtlas:
		if e.creds.AtlasPublicKey == "" || e.creds.AtlasPrivateKey == "" || e.clients.Atlas == nil {
			return nil, "MONGODB_ATLAS_API_PUBLIC_KEY and MONGODB_ATLAS_API_PRIVATE_KEY"
		}
		return e.clients.Atlas, ""
	}
	return nil, "client for " + string(p)
}

func (e *Engine) healthProvider(ctx context.Context, pass string, p domain.Provider) (ProviderReport, error) {
	services, pr, client, err := e.gate(ctx, pass, p)
	if err != nil || client == nil {
		return pr, err
	}
	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return pr, err
		}
		e.count(&pr, pass, e.checkHealth(ctx, client, svc, provider.Ref{ID: svc.ProviderInternalID}, domain.MetricHealth))
	}
	return pr, nil
}

func (e *Engine) dbHealth(ctx context.Context) (ProviderReport, error) {
	services, pr, client, err := e.gate(ctx, PassDBHealth, domain.ProviderAtlas)
	if err != nil || client == nil {
		return pr, err
	}
	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return pr, err
		}
		projectID := svc.ProviderProjectID
		if projectID == "" {
			projectID = e.creds.AtlasProjectID
		}
		if projectID == "" {
			e.log.Warn("no atlas project id for service, set providerProjectId or MONGODB_ATLAS_PROJECT_ID",
				"service_id", svc.ID, "service", svc.Name)
			now := e.now().UTC()
			outcome := e.persist(ctx, svc, domain.StatusUnknown, domain.ServiceStatusUpdate{LastCheckedAt: &now})
			if outcome == telemetry.OutcomeUpdated {
				outcome = telemetry.OutcomeSkipped
			}
			e.count(&pr, PassDBHealth, outcome)
			continue
		}
		e.count(&pr, PassDBHealth, e.checkHealth(ctx, client, svc, provider.Ref{ID: svc.ProviderInternalID, ProjectID: projectID}, domain.MetricDBHealth))
	}
	return pr, nil
}

// checkHealth runs FETCHING, NORMALIZING and PERSISTING for one service.
func (e *Engine) checkHealth(ctx context.Context, client provider.Client, svc domain.Service, ref provider.Ref, metric string) string {
	log := e.log.With("service_id", svc.ID, "service", svc.Name, "provider", svc.Provider)

	health, err := client.GetHealth(ctx, ref)
	now := e.now().UTC()
	if err != nil {
		next := status.FromError(svc.Provider, err)
		log.Warn("health fetch failed", "error", err, "status", next, "project_id", ref.ProjectID)
		if svc.Provider == domain.ProviderAtlas {
			e.atlasHint(log, err, ref)
		}
		e.persist(ctx, svc, next, domain.ServiceStatusUpdate{LastCheckedAt: &now})
		return telemetry.OutcomeFailed
	}

	next := status.Normalize(health)
	outcome := e.persist(ctx, svc, next, domain.ServiceStatusUpdate{LastCheckedAt: &now, ProviderStatus: health.Raw()})
	if outcome != telemetry.OutcomeUpdated {
		return outcome
	}
	if err := e.metrics.Record(ctx, svc.ID, metric, status.HealthMetricValue(health, next), now); err != nil {
		log.Error("record metric failed", "metric", metric, "error", err)
		return telemetry.OutcomeFailed
	}
	log.Debug("service health updated", "status", next)
	return telemetry.OutcomeUpdated
}

func (e *Engine) atlasHint(log *slog.Logger, err error, ref provider.Ref) {
	switch {
	case status.IsAuthFailure(err):
		log.Warn("atlas authentication failed: verify MONGODB_ATLAS_API_PUBLIC_KEY and MONGODB_ATLAS_API_PRIVATE_KEY, the key's access to the project, the IP access list, and that the key is not revoked",
			"project_id", ref.ProjectID)
	case provider.StatusCode(err) == http.StatusNotFound:
		log.Warn("atlas cluster not found: providerInternalId must be the cluster name", "cluster", ref.ID, "project_id", ref.ProjectID)
	case errors.Is(err, provider.ErrMissingProject):
		log.Warn("atlas project id missing", "cluster", ref.ID)
	}
}

func (e *Engine) deploysProvider(ctx context.Context, p domain.Provider) (ProviderReport, error) {
	services, pr, client, err := e.gate(ctx, PassDeploys, p)
	if err != nil || client == nil {
		return pr, err
	}
	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return pr, err
		}
		e.count(&pr, PassDeploys, e.checkDeploys(ctx, client, svc))
	}
	return pr, nil
}

func (e *Engine) checkDeploys(ctx context.Context, client provider.Client, svc domain.Service) string {
	log := e.log.With("service_id", svc.ID, "service", svc.Name, "provider", svc.Provider)

	deploys, err := client.GetDeploys(ctx, provider.Ref{ID: svc.ProviderInternalID})
	if err != nil {
		log.Warn("deploy fetch failed", "error", err)
		return telemetry.OutcomeFailed
	}
	if len(deploys) == 0 {
		log.Debug("no deploys found")
		return telemetry.OutcomeSkipped
	}

	latest := deploys[0]
	now := e.now().UTC()
	update := domain.ServiceStatusUpdate{LastCheckedAt: &now}
	if at, ok := provider.ExtractDeployDate(latest); ok {
		at = at.UTC()
		update.LastDeployAt = &at
	} else {
		log.Warn("deploy has no parseable date", "fields", latest.Keys())
	}
	if err := e.services.UpdateServiceStatus(ctx, svc.ID, update); err != nil {
		log.Error("persist deploy failed", "error", err)
		return telemetry.OutcomeFailed
	}

	if err := e.metrics.Record(ctx, svc.ID, domain.MetricDeployStatus, deployState(svc.Provider, latest), now); err != nil {
		log.Error("record metric failed", "metric", domain.MetricDeployStatus, "error", err)
		return telemetry.OutcomeFailed
	}
	return telemetry.OutcomeUpdated
}

func deployState(p domain.Provider, d provider.Deploy) string {
	field := "status"
	if p == domain.ProviderNetlify {
		field = "state"
	}
	if v := d.String(field); v != "" {
		return v
	}
	return "unknown"
}

// persist writes the status update and notifies on transitions.
func (e *Engine) persist(ctx context.Context, svc domain.Service, next domain.ServiceStatus, update domain.ServiceStatusUpdate) string {
	update.Status = &next
	if err := e.services.UpdateServiceStatus(ctx, svc.ID, update); err != nil {
		e.log.Error("persist status failed", "service_id", svc.ID, "status", next, "error", err)
		return telemetry.OutcomeFailed
	}
	if e.notify != nil && svc.Status != next {
		e.notify.StatusChanged(ctx, svc, next)
	}
	return telemetry.OutcomeUpdated
}

func (e *Engine) count(pr *ProviderReport, pass, outcome string) {
	switch outcome {
	case telemetry.OutcomeUpdated:
		pr.Updated++
	case telemetry.OutcomeSkipped:
		pr.Skipped++
	default:
		pr.Failed++
	}
	telemetry.ObserveService(pass, string(pr.Provider), outcome)
}
