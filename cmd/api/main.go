package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/dotanscherzer/projects-Dasboard/internal/app/migrate"
	httpx "github.com/dotanscherzer/projects-Dasboard/internal/http"
	"github.com/dotanscherzer/projects-Dasboard/internal/provider"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository/postgres"
	"github.com/dotanscherzer/projects-Dasboard/internal/scheduler"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/auth"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/automation"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/envvar"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/events"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/metric"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/project"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/registry"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/summary"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/workitem"
	"github.com/dotanscherzer/projects-Dasboard/internal/syncengine"
	"github.com/dotanscherzer/projects-Dasboard/internal/telemetry"
	"github.com/dotanscherzer/projects-Dasboard/internal/ws"
	"github.com/dotanscherzer/projects-Dasboard/pkg/config"
	"github.com/dotanscherzer/projects-Dasboard/pkg/logger"
)

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		slog.Error("failed to load env files", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	if err := telemetry.Register(prometheus.DefaultRegisterer); err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()
	defer hub.Close()
	eventSvc := events.New(hub, log.With("component", "events"))

	metricSvc := metric.New(repo, repo, log.With("component", "metrics"))
	creds := cfg.Providers
	engine := syncengine.New(repo, metricSvc, syncengine.Clients{
		Render:  provider.NewRenderClient(creds.RenderBaseURL, creds.RenderAPIKey, nil, creds.HTTPTimeout),
		Netlify: provider.NewNetlifyClient(creds.NetlifyBaseURL, creds.NetlifyAPIToken, creds.NetlifySiteID, nil, creds.HTTPTimeout),
		Atlas:   provider.NewAtlasClient(creds.AtlasBaseURL, creds.AtlasPublicKey, creds.AtlasPrivateKey, creds.AtlasProjectID, nil, creds.HTTPTimeout),
	}, creds, log, syncengine.WithNotifier(eventSvc))
	ingestor := automation.NewIngestor(repo, metricSvc, eventSvc, cfg.MakeWebhookSecret, log)
	detector := automation.NewDetector(repo, eventSvc, log)

	if cfg.SchedulerEnabled {
		sched, err := newScheduler(ctx, cfg, engine, detector, metricSvc, log)
		if err != nil {
			log.Error("failed to configure scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
		if len(cfg.SchedulerRunOnStart) > 0 {
			go func() {
				for _, name := range cfg.SchedulerRunOnStart {
					if err := sched.Trigger(name); err != nil {
						log.Warn("startup job not run", "job", name, "error", err)
					}
				}
			}()
		}
		defer func() {
			select {
			case <-sched.Stop().Done():
			case <-time.After(30 * time.Second):
				log.Warn("scheduler jobs still running at shutdown")
			}
		}()
	} else {
		log.Info("in-process scheduler disabled; trigger endpoints must be called externally")
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, httpx.Deps{
		Auth:           auth.New(repo, log, cfg),
		Projects:       project.New(repo, repo, log),
		Registry:       registry.New(repo, repo, log),
		WorkItems:      workitem.New(repo, repo, log),
		EnvVars:        envvar.New(repo, repo, cfg.EnvEncryptionKey, log),
		Metrics:        metricSvc,
		Summary:        summary.New(repo, repo, repo),
		Sync:           engine,
		Webhook:        ingestor,
		Staleness:      detector,
		Resources:      engine,
		Hub:            hub,
		Limiter:        limiter,
		InternalSecret: cfg.InternalSecret,
		RetentionDays:  cfg.MetricsRetentionDays,
		DBHealth:       pool.Ping,
	})
	defer router.Close()

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func newScheduler(ctx context.Context, cfg config.APIConfig, engine *syncengine.Engine, detector *automation.Detector, metrics metric.Service, log *slog.Logger) (*scheduler.Scheduler, error) {
	pass := func(run func(context.Context) (syncengine.Report, error)) func(context.Context) error {
		return func(ctx context.Context) error {
			_, err := run(ctx)
			return err
		}
	}
	jobs, err := scheduler.DefaultJobs(scheduler.Actions{
		SyncHealth:   pass(engine.SyncHealth),
		SyncDeploys:  pass(engine.SyncDeploys),
		SyncDBHealth: pass(engine.SyncDBHealth),
		AutomationHealth: func(ctx context.Context) error {
			_, err := detector.Run(ctx)
			return err
		},
		MetricsCleanup: func(ctx context.Context) error {
			_, err := metrics.Cleanup(ctx, cfg.MetricsRetentionDays)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	overrides, err := scheduler.LoadOverrides(cfg.SchedulerConfigFile)
	if err != nil {
		return nil, err
	}
	if jobs, err = scheduler.Apply(jobs, overrides); err != nil {
		return nil, err
	}
	return scheduler.New(ctx, jobs, log)
}
