package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/provider"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/auth"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/automation"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/envvar"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/metric"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/project"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/registry"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/summary"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/workitem"
	"github.com/dotanscherzer/projects-Dasboard/internal/syncengine"
	"github.com/dotanscherzer/projects-Dasboard/internal/ws"
)

// Syncer runs the provider sync passes.
type Syncer interface {
	SyncHealth(ctx context.Context) (syncengine.Report, error)
	SyncDeploys(ctx context.Context) (syncengine.Report, error)
	SyncDBHealth(ctx context.Context) (syncengine.Report, error)
}

// WebhookIngestor accepts automation run reports.
type WebhookIngestor interface {
	VerifySignature(payload []byte, provided string) error
	HandlePayload(ctx context.Context, payload []byte) error
}

// StalenessDetector flags automations that stopped reporting.
type StalenessDetector interface {
	Run(ctx context.Context) (automation.StaleReport, error)
}

// ResourceLister enumerates provider resources for service registration.
type ResourceLister interface {
	ListResources(ctx context.Context, p domain.Provider, projectID string) ([]provider.Resource, error)
}

// Deps lists everything the router dispatches to.
type Deps struct {
	Auth           auth.Service
	Projects       project.Service
	Registry       registry.Service
	WorkItems      workitem.Service
	EnvVars        envvar.Service
	Metrics        metric.Service
	Summary        summary.Service
	Sync           Syncer
	Webhook        WebhookIngestor
	Staleness      StalenessDetector
	Resources      ResourceLister
	Hub            *ws.Hub
	Limiter        RateLimiter
	InternalSecret string
	RetentionDays  int
	DBHealth       func(context.Context) error
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux            *http.ServeMux
	logger         *slog.Logger
	auth           auth.Service
	projects       project.Service
	registry       registry.Service
	workItems      workitem.Service
	envVars        envvar.Service
	metrics        metric.Service
	summary        summary.Service
	sync           Syncer
	resources      ResourceLister
	webhook        WebhookIngestor
	staleness      StalenessDetector
	hub            *ws.Hub
	upgrader       websocket.Upgrader
	limiter        RateLimiter
	internalSecret string
	retentionDays  int
	dbHealth       func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	streamConnections  *prometheus.GaugeVec
}

const (
	rateWindowDefault   = time.Minute
	rateWindowRealtime  = 30 * time.Second
	rateLimitRegister   = 5
	rateLimitLogin      = 12
	rateLimitUserWrite  = 60
	rateLimitUserRead   = 120
	rateLimitStream     = 30
	rateLimitInternal   = 30
	healthCheckTimeout  = 2 * time.Second
	sseHeartbeatEvery   = 25 * time.Second
	maxWebhookBodyBytes = 1 << 20
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, deps Deps) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		auth:      deps.Auth,
		projects:  deps.Projects,
		registry:  deps.Registry,
		workItems: deps.WorkItems,
		envVars:   deps.EnvVars,
		metrics:   deps.Metrics,
		summary:   deps.Summary,
		sync:      deps.Sync,
		webhook:   deps.Webhook,
		staleness: deps.Staleness,
		resources: deps.Resources,
		hub:       deps.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:        deps.Limiter,
		internalSecret: strings.TrimSpace(deps.InternalSecret),
		retentionDays:  deps.RetentionDays,
		dbHealth:       deps.DBHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.handle("/health", r.handleHealth)
	r.handle("/healthz", r.handleHealthz)
	r.mux.Handle("/metrics", promhttp.Handler())

	r.handle("/api/auth/register", r.withRateLimit("/api/auth/register", rateLimitRegister, rateWindowDefault, rateLimitKeyIP, r.handleRegister))
	r.handle("/api/auth/login", r.withRateLimit("/api/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin))

	r.handle("/api/projects", r.handlerAuthRate("/api/projects", rateLimitUserWrite, rateWindowDefault, r.handleProjects))
	r.handle("/api/projects/{id}", r.handlerAuthRate("/api/projects/{id}", rateLimitUserWrite, rateWindowDefault, r.handleProject))
	r.handle("/api/projects/{id}/events", r.handlerAuthRate("/api/projects/{id}/events", rateLimitStream, rateWindowRealtime, r.handleProjectEvents))
	r.handle("/api/services", r.handlerAuthRate("/api/services", rateLimitUserWrite, rateWindowDefault, r.handleServices))
	r.handle("/api/services/{id}", r.handlerAuthRate("/api/services/{id}", rateLimitUserWrite, rateWindowDefault, r.handleService))
	r.handle("/api/services/{id}/env", r.handlerAuthRate("/api/services/{id}/env", rateLimitUserWrite, rateWindowDefault, r.handleServiceEnv))
	r.handle("/api/services/{id}/env/{key}", r.handlerAuthRate("/api/services/{id}/env/{key}", rateLimitUserWrite, rateWindowDefault, r.handleServiceEnvKey))
	r.handle("/api/metrics", r.handlerAuthRate("/api/metrics", rateLimitUserRead, rateWindowDefault, r.handleMetrics))
	r.handle("/api/workitems", r.handlerAuthRate("/api/workitems", rateLimitUserWrite, rateWindowDefault, r.handleWorkItems))
	r.handle("/api/workitems/{id}", r.handlerAuthRate("/api/workitems/{id}", rateLimitUserWrite, rateWindowDefault, r.handleWorkItem))
	r.handle("/api/summary", r.handlerAuthRate("/api/summary", rateLimitUserRead, rateWindowDefault, r.handleSummary))
	r.handle("/api/providers/{provider}/resources", r.handlerAuthRate("/api/providers/{provider}/resources", rateLimitUserRead, rateWindowDefault, r.handleProviderResources))
	r.handle("/ws/status", r.handlerAuthRate("/ws/status", rateLimitStream, rateWindowRealtime, r.handleStatusWS))

	r.handle("/internal/sync/health", r.internal("/internal/sync/health", r.handleSyncHealth))
	r.handle("/internal/sync/deploys", r.internal("/internal/sync/deploys", r.handleSyncDeploys))
	r.handle("/internal/sync/db-health", r.internal("/internal/sync/db-health", r.handleSyncDBHealth))
	r.handle("/internal/sync/automation-health", r.internal("/internal/sync/automation-health", r.handleAutomationHealth))
	r.handle("/internal/sync/cleanup", r.internal("/internal/sync/cleanup", r.handleCleanup))
	r.handle("/internal/make/report", r.internal("/internal/make/report", r.handleMakeReport))
}

// handle registers pattern behind the audit middleware, labelled by pattern.
func (r *Router) handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, r.audit(pattern, h))
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := r.auth.Register(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token.AccessToken,
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token.AccessToken,
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		} else if strings.HasPrefix(req.URL.Path, "/internal/") {
			actor = "internal"
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
