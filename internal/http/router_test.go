package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/provider"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/auth"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/automation"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/metric"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/project"
	"github.com/dotanscherzer/projects-Dasboard/internal/syncengine"
	"github.com/dotanscherzer/projects-Dasboard/internal/ws"
	"github.com/dotanscherzer/projects-Dasboard/pkg/config"
	jwtpkg "github.com/dotanscherzer/projects-Dasboard/pkg/jwt"
)

const (
	testJWTSecret      = "test-secret"
	testInternalSecret = "internal-secret"
)

type rateLimiterStub struct {
	mu      sync.Mutex
	calls   []rateLimitCall
	allowFn func(key string, limit int, window time.Duration) rateDecision
}

type rateLimitCall struct {
	key    string
	limit  int
	window time.Duration
}

func (rl *rateLimiterStub) Allow(key string, limit int, window time.Duration) rateDecision {
	rl.mu.Lock()
	rl.calls = append(rl.calls, rateLimitCall{key: key, limit: limit, window: window})
	fn := rl.allowFn
	rl.mu.Unlock()
	if fn != nil {
		return fn(key, limit, window)
	}
	return rateDecision{allowed: true, count: 1, windowEnd: time.Now().Add(window)}
}

func (rl *rateLimiterStub) Close() {}

type userRepoStub struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[string]*domain.User)}
}

func (u *userRepoStub) CreateUser(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
	}
	copy := *user
	u.users[user.ID] = &copy
	return nil
}

func (u *userRepoStub) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Email == email {
			copy := *user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (u *userRepoStub) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user, ok := u.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

type projectRepoStub struct {
	mu       sync.Mutex
	projects map[string]domain.Project
}

func (p *projectRepoStub) CreateProject(_ context.Context, proj *domain.Project) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.projects {
		if existing.Code == proj.Code {
			return repository.ErrConflict
		}
	}
	p.projects[proj.ID] = *proj
	return nil
}

func (p *projectRepoStub) UpdateProject(_ context.Context, proj *domain.Project) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.projects[proj.ID]; !ok {
		return repository.ErrNotFound
	}
	p.projects[proj.ID] = *proj
	return nil
}

func (p *projectRepoStub) GetProjectByID(_ context.Context, id string) (*domain.Project, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	proj, ok := p.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &proj, nil
}

func (p *projectRepoStub) ListProjects(_ context.Context, _ domain.ProjectFilter) ([]domain.Project, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Project, 0, len(p.projects))
	for _, proj := range p.projects {
		out = append(out, proj)
	}
	return out, nil
}

func (p *projectRepoStub) DeleteProject(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.projects[id]; !ok {
		return repository.ErrNotFound
	}
	delete(p.projects, id)
	return nil
}

func (p *projectRepoStub) CountProjects(_ context.Context, _ domain.ProjectFilter) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.projects), nil
}

type childrenStub struct {
	services []domain.Service
}

func (c childrenStub) ListServices(_ context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	var out []domain.Service
	for _, svc := range c.services {
		if svc.ProjectID == filter.ProjectID {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (c childrenStub) ListEnvVarsByProject(context.Context, string) ([]domain.EnvVar, error) {
	return nil, nil
}

func (c childrenStub) ListWorkItems(context.Context, domain.WorkItemFilter) ([]domain.WorkItem, error) {
	return nil, nil
}

type metricRepoStub struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
}

func (m *metricRepoStub) InsertMetric(context.Context, *domain.Metric) error { return nil }

func (m *metricRepoStub) ListMetrics(context.Context, domain.MetricFilter) ([]domain.Metric, error) {
	return nil, nil
}

func (m *metricRepoStub) DeleteMetricsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.deleted, nil
}

type syncerStub struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *syncerStub) run(pass string) (syncengine.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, pass)
	if s.err != nil {
		return syncengine.Report{}, s.err
	}
	return syncengine.Report{Pass: pass, Providers: []syncengine.ProviderReport{{Provider: domain.ProviderRender, Services: 2, Updated: 2}}}, nil
}

func (s *syncerStub) SyncHealth(context.Context) (syncengine.Report, error) {
	return s.run(syncengine.PassHealth)
}

func (s *syncerStub) SyncDeploys(context.Context) (syncengine.Report, error) {
	return s.run(syncengine.PassDeploys)
}

func (s *syncerStub) SyncDBHealth(context.Context) (syncengine.Report, error) {
	return s.run(syncengine.PassDBHealth)
}

type ingestorStub struct {
	sigErr    error
	handleErr error
	payloads  [][]byte
}

func (i *ingestorStub) VerifySignature(_ []byte, _ string) error { return i.sigErr }

func (i *ingestorStub) HandlePayload(_ context.Context, payload []byte) error {
	i.payloads = append(i.payloads, payload)
	return i.handleErr
}

type detectorStub struct {
	report automation.StaleReport
}

func (d detectorStub) Run(context.Context) (automation.StaleReport, error) {
	return d.report, nil
}

type resourceListerStub struct {
	resources []provider.Resource
	err       error
	provider  domain.Provider
	projectID string
}

func (l *resourceListerStub) ListResources(_ context.Context, p domain.Provider, projectID string) ([]provider.Resource, error) {
	l.provider, l.projectID = p, projectID
	return l.resources, l.err
}

type testEnv struct {
	router   *Router
	token    string
	users    *userRepoStub
	projects *projectRepoStub
	metrics  *metricRepoStub
	sync     *syncerStub
	webhook  *ingestorStub
	limiter  *rateLimiterStub
	hub      *ws.Hub
	lister   *resourceListerStub
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		users:    newUserRepoStub(),
		projects: &projectRepoStub{projects: make(map[string]domain.Project)},
		metrics:  &metricRepoStub{deleted: 3},
		sync:     &syncerStub{},
		webhook:  &ingestorStub{},
		limiter:  &rateLimiterStub{},
		hub:      ws.NewHub(),
		lister:   &resourceListerStub{},
	}
	t.Cleanup(env.hub.Close)
	env.users.users["user-123"] = &domain.User{ID: "user-123", Email: "user@example.com"}

	cfg := config.APIConfig{JWTSecret: testJWTSecret, JWTExpiresIn: time.Hour}
	env.router = NewRouter(logger, Deps{
		Auth:           auth.New(env.users, logger, cfg),
		Projects:       project.New(env.projects, childrenStub{}, logger),
		Metrics:        metric.New(env.metrics, nil, logger),
		Sync:           env.sync,
		Webhook:        env.webhook,
		Staleness:      detectorStub{report: automation.StaleReport{Checked: 4, Marked: 1, ServiceIDs: []string{"svc-9"}}},
		Resources:      env.lister,
		Hub:            env.hub,
		Limiter:        env.limiter,
		InternalSecret: testInternalSecret,
		RetentionDays:  30,
	})
	t.Cleanup(env.router.Close)

	token, err := jwtpkg.GenerateToken("user-123", "user@example.com", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	env.token = token
	return env
}

func (e *testEnv) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(v)
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func internalHeaders() map[string]string {
	return map[string]string{internalSecretHeader: testInternalSecret}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(out); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}

func TestInternalRoutesRequireSecret(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(http.MethodPost, "/internal/sync/health", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rr.Code)
	}
	rr = env.do(http.MethodPost, "/internal/sync/health", nil, map[string]string{internalSecretHeader: "wrong-secret-xx"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", rr.Code)
	}
	if len(env.sync.calls) != 0 {
		t.Fatalf("expected no pass to run, got %v", env.sync.calls)
	}

	rr = env.do(http.MethodPost, "/internal/sync/health", nil, internalHeaders())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var report syncengine.Report
	decodeBody(t, rr, &report)
	if report.Pass != syncengine.PassHealth {
		t.Fatalf("expected health report, got %q", report.Pass)
	}
}

func TestInternalRoutesRejectWhenSecretUnset(t *testing.T) {
	env := setupRouter(t)
	env.router.internalSecret = ""

	rr := env.do(http.MethodPost, "/internal/sync/deploys", nil, map[string]string{internalSecretHeader: ""})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if len(env.sync.calls) != 0 {
		t.Fatalf("expected no pass to run")
	}
}

func TestInternalSyncRoutesDispatchPasses(t *testing.T) {
	env := setupRouter(t)
	paths := map[string]string{
		"/internal/sync/health":    syncengine.PassHealth,
		"/internal/sync/deploys":   syncengine.PassDeploys,
		"/internal/sync/db-health": syncengine.PassDBHealth,
	}
	for path, pass := range paths {
		rr := env.do(http.MethodPost, path, nil, internalHeaders())
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		last := env.sync.calls[len(env.sync.calls)-1]
		if last != pass {
			t.Fatalf("%s: expected pass %s, got %s", path, pass, last)
		}
	}

	rr := env.do(http.MethodGet, "/internal/sync/health", nil, internalHeaders())
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rr.Code)
	}
}

func TestInternalSyncFailureIsServerError(t *testing.T) {
	env := setupRouter(t)
	env.sync.err = errors.New("boom")

	rr := env.do(http.MethodPost, "/internal/sync/health", nil, internalHeaders())
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var payload map[string]string
	decodeBody(t, rr, &payload)
	if payload["error"] != "internal server error" {
		t.Fatalf("expected generic error, got %q", payload["error"])
	}
}

func TestAutomationHealthReturnsStaleReport(t *testing.T) {
	env := setupRouter(t)
	rr := env.do(http.MethodPost, "/internal/sync/automation-health", nil, internalHeaders())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var report automation.StaleReport
	decodeBody(t, rr, &report)
	if report.Marked != 1 || report.Checked != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestCleanupHonoursDaysParameter(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(http.MethodPost, "/internal/sync/cleanup?days=abc", nil, internalHeaders())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad days, got %d", rr.Code)
	}

	before := time.Now().UTC()
	rr = env.do(http.MethodPost, "/internal/sync/cleanup?days=7", nil, internalHeaders())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Deleted    int64 `json:"deleted"`
		DaysToKeep int   `json:"daysToKeep"`
	}
	decodeBody(t, rr, &payload)
	if payload.Deleted != 3 || payload.DaysToKeep != 7 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	cutoff := env.metrics.cutoffs[len(env.metrics.cutoffs)-1]
	if diff := before.AddDate(0, 0, -7).Sub(cutoff); diff > time.Minute || diff < -time.Minute {
		t.Fatalf("expected cutoff about 7 days ago, got %s", cutoff)
	}

	rr = env.do(http.MethodPost, "/internal/sync/cleanup", nil, internalHeaders())
	decodeBody(t, rr, &payload)
	if payload.DaysToKeep != 30 {
		t.Fatalf("expected configured retention, got %d", payload.DaysToKeep)
	}
}

func TestMakeReportChecksSignature(t *testing.T) {
	env := setupRouter(t)
	env.webhook.sigErr = automation.ErrInvalidSignature

	rr := env.do(http.MethodPost, "/internal/make/report", []byte(`{"scenarioId":"1"}`), internalHeaders())
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if len(env.webhook.payloads) != 0 {
		t.Fatalf("expected payload to be dropped")
	}
}

func TestMakeReportMapsInvalidPayload(t *testing.T) {
	env := setupRouter(t)
	env.webhook.handleErr = automation.ErrInvalidReport

	rr := env.do(http.MethodPost, "/internal/make/report", []byte(`{"status":"maybe"}`), internalHeaders())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	env.webhook.handleErr = nil
	body := []byte(`{"scenarioId":"42","status":"success"}`)
	rr = env.do(http.MethodPost, "/internal/make/report", body, internalHeaders())
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	last := env.webhook.payloads[len(env.webhook.payloads)-1]
	if !bytes.Equal(last, body) {
		t.Fatalf("expected raw body to reach the ingestor, got %s", last)
	}
}

func TestProjectRoutesRequireAuth(t *testing.T) {
	env := setupRouter(t)
	rr := env.do(http.MethodGet, "/api/projects", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = env.do(http.MethodGet, "/api/projects", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rr.Code)
	}
}

func TestProjectLifecycle(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(http.MethodPost, "/api/projects", map[string]any{
		"name":       "Billing",
		"code":       "bil",
		"owner":      "ops",
		"nextAction": "ship v2",
	}, env.bearer())
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created domain.Project
	decodeBody(t, rr, &created)
	if created.Code != "BIL" || created.Status != domain.ProjectActive {
		t.Fatalf("unexpected project %+v", created)
	}

	rr = env.do(http.MethodPost, "/api/projects", map[string]any{
		"name": "Billing 2", "code": "BIL", "owner": "ops", "nextAction": "x",
	}, env.bearer())
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate code, got %d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/api/projects/"+created.ID, nil, env.bearer())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var details domain.ProjectDetails
	decodeBody(t, rr, &details)
	if details.Project.ID != created.ID {
		t.Fatalf("expected details for %s, got %s", created.ID, details.Project.ID)
	}

	rr = env.do(http.MethodDelete, "/api/projects/"+created.ID, nil, env.bearer())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rr.Code)
	}
	rr = env.do(http.MethodGet, "/api/projects/"+created.ID, nil, env.bearer())
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestProjectCreateValidationIsBadRequest(t *testing.T) {
	env := setupRouter(t)
	rr := env.do(http.MethodPost, "/api/projects", map[string]any{"name": "x"}, env.bearer())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = env.do(http.MethodPost, "/api/projects", []byte("{"), env.bearer())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rr.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(http.MethodPost, "/api/auth/register", map[string]string{"email": "New@Example.com", "password": "correct-horse"}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var registered struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	decodeBody(t, rr, &registered)
	if registered.Token == "" || registered.User.Email != "new@example.com" {
		t.Fatalf("unexpected register payload %+v", registered)
	}

	rr = env.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "new@example.com", "password": "wrong-password"}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rr.Code)
	}
	rr = env.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "new@example.com", "password": "correct-horse"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/api/projects", nil, map[string]string{"Authorization": "Bearer " + registered.Token})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected issued token to authorize, got %d", rr.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := setupRouter(t)
	reset := time.Unix(1_950_000_000, 0)
	env.limiter.allowFn = func(string, int, time.Duration) rateDecision {
		return rateDecision{allowed: false, count: rateLimitLogin, windowEnd: reset}
	}

	rr := env.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "user@example.com", "password": "whatever1"}, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("unexpected remaining header %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Reset"); got != "1950000000" {
		t.Fatalf("unexpected reset header %q", got)
	}
	env.limiter.mu.Lock()
	defer env.limiter.mu.Unlock()
	if len(env.limiter.calls) != 1 || !strings.HasPrefix(env.limiter.calls[0].key, "ip:") {
		t.Fatalf("expected one ip-keyed call, got %+v", env.limiter.calls)
	}
}

func TestAuthenticatedRoutesRateLimitPerUser(t *testing.T) {
	env := setupRouter(t)
	rr := env.do(http.MethodGet, "/api/projects", nil, env.bearer())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	env.limiter.mu.Lock()
	defer env.limiter.mu.Unlock()
	if len(env.limiter.calls) != 1 || env.limiter.calls[0].key != "user:user-123" {
		t.Fatalf("expected user-keyed call, got %+v", env.limiter.calls)
	}
	if env.limiter.calls[0].limit != rateLimitUserWrite {
		t.Fatalf("unexpected limit %d", env.limiter.calls[0].limit)
	}
}

func TestHealthzReportsDatabaseFailure(t *testing.T) {
	env := setupRouter(t)
	env.router.dbHealth = func(context.Context) error { return errors.New("connection refused") }

	rr := env.do(http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var payload map[string]any
	decodeBody(t, rr, &payload)
	if payload["status"] != "degraded" {
		t.Fatalf("expected degraded, got %v", payload["status"])
	}

	env.router.dbHealth = func(context.Context) error { return nil }
	rr = env.do(http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = env.do(http.MethodGet, "/health", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rr.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{repository.ErrNotFound, http.StatusNotFound},
		{repository.ErrConflict, http.StatusConflict},
		{automation.ErrInvalidReport, http.StatusBadRequest},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("%w: RENDER_API_KEY not set", provider.ErrNotConfigured), http.StatusServiceUnavailable},
		{fmt.Errorf("list render services: %w", &provider.APIError{Provider: domain.ProviderRender, StatusCode: 401}), http.StatusBadGateway},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v): expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestProjectEventsStreamStatusChanges(t *testing.T) {
	env := setupRouter(t)
	env.projects.projects["proj-1"] = domain.Project{ID: "proj-1", Name: "Billing", Code: "BIL"}

	req := httptest.NewRequest(http.MethodGet, "/api/projects/proj-1/events", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)

	recorder := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		env.router.ServeHTTP(recorder, req)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return strings.Contains(recorder.body(), ": ping")
	})
	env.hub.Broadcast("proj-1", []byte(`{"type":"service.status_changed","serviceId":"svc-1","status":"down"}`))
	env.hub.Broadcast("proj-2", []byte(`{"type":"service.status_changed","serviceId":"svc-2","status":"up"}`))
	waitFor(t, 2*time.Second, func() bool {
		return strings.Contains(recorder.body(), "data: ")
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event stream handler did not exit after context cancel")
	}

	if ct := recorder.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	payloads, err := extractSSEPayloads(recorder.body())
	if err != nil {
		t.Fatalf("extract sse payloads: %v", err)
	}
	if len(payloads) != 1 || payloads[0]["serviceId"] != "svc-1" {
		t.Fatalf("expected only the proj-1 event, got %v", payloads)
	}
}

func TestProjectEventsUnknownProject(t *testing.T) {
	env := setupRouter(t)
	rr := env.do(http.MethodGet, "/api/projects/missing/events", nil, env.bearer())
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestMemoryRateLimiterWindows(t *testing.T) {
	now := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	rl := NewMemoryRateLimiter().(*memoryRateLimiter)
	defer rl.Close()
	rl.now = func() time.Time { return now }

	for i := 1; i <= 2; i++ {
		if d := rl.Allow("ip:1.2.3.4", 2, time.Minute); !d.allowed || d.count != i {
			t.Fatalf("call %d: unexpected decision %+v", i, d)
		}
	}
	if d := rl.Allow("ip:1.2.3.4", 2, time.Minute); d.allowed {
		t.Fatalf("expected third call to be denied")
	}
	if d := rl.Allow("ip:5.6.7.8", 2, time.Minute); !d.allowed {
		t.Fatalf("expected other key to be allowed")
	}

	now = now.Add(61 * time.Second)
	if d := rl.Allow("ip:1.2.3.4", 2, time.Minute); !d.allowed || d.count != 1 {
		t.Fatalf("expected fresh window, got %+v", d)
	}
	rl.cleanup(now.Add(2 * time.Minute))
	rl.mu.Lock()
	remaining := len(rl.entries)
	rl.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected sweep to drop expired entries, got %d", remaining)
	}
}

type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	status int
	buf    bytes.Buffer
	flush  int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header)}
}

func (s *streamRecorder) Header() http.Header {
	return s.header
}

func (s *streamRecorder) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.buf.Write(b)
}

func (s *streamRecorder) WriteHeader(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *streamRecorder) Flush() {
	s.mu.Lock()
	s.flush++
	s.mu.Unlock()
}

func (s *streamRecorder) body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func extractSSEPayloads(body string) ([]map[string]any, error) {
	var payloads []map[string]any
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

func TestSurfaceFor(t *testing.T) {
	cases := map[string]string{
		"/internal/sync/health":     surfaceInternal,
		"/internal/make/report":     surfaceInternal,
		"/api/projects/{id}/events": surfaceStream,
		"/ws/status":                surfaceStream,
		"/api/projects":             surfaceAPI,
		"/healthz":                  surfaceSystem,
	}
	for route, want := range cases {
		if got := surfaceFor(route); got != want {
			t.Fatalf("route %s: expected %s, got %s", route, want, got)
		}
	}
}

func TestRequestMetricsSeparateInternalTriggers(t *testing.T) {
	env := setupRouter(t)
	internalCount := env.router.requestTotal.WithLabelValues(surfaceInternal, http.MethodPost, "/internal/sync/health", "200")
	apiCount := env.router.requestTotal.WithLabelValues(surfaceAPI, http.MethodPost, "/internal/sync/health", "200")
	beforeInternal, beforeAPI := testutil.ToFloat64(internalCount), testutil.ToFloat64(apiCount)

	if rr := env.do(http.MethodPost, "/internal/sync/health", nil, internalHeaders()); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if got := testutil.ToFloat64(internalCount) - beforeInternal; got != 1 {
		t.Fatalf("expected internal counter to grow by 1, got %v", got)
	}
	if got := testutil.ToFloat64(apiCount) - beforeAPI; got != 0 {
		t.Fatalf("expected api counter unchanged, got %v", got)
	}
}

func TestProviderResourcesListsAccountResources(t *testing.T) {
	env := setupRouter(t)
	env.lister.resources = []provider.Resource{{ID: "Cluster0", Name: "Cluster0"}}

	if rr := env.do(http.MethodGet, "/api/providers/atlas/resources", nil, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr := env.do(http.MethodGet, "/api/providers/atlas/resources?projectId=grp-1", nil, env.bearer())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got []provider.Resource
	decodeBody(t, rr, &got)
	if len(got) != 1 || got[0].ID != "Cluster0" {
		t.Fatalf("unexpected resources %+v", got)
	}
	if env.lister.provider != domain.ProviderAtlas || env.lister.projectID != "grp-1" {
		t.Fatalf("expected atlas/grp-1, got %s/%s", env.lister.provider, env.lister.projectID)
	}
}

func TestProviderResourcesErrorMapping(t *testing.T) {
	env := setupRouter(t)
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: unsupported provider make", repository.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: NETLIFY_API_TOKEN not set", provider.ErrNotConfigured), http.StatusServiceUnavailable},
		{&provider.APIError{Provider: domain.ProviderNetlify, StatusCode: 401}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		env.lister.err = tc.err
		if rr := env.do(http.MethodGet, "/api/providers/netlify/resources", nil, env.bearer()); rr.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
	}

	env.router.resources = nil
	if rr := env.do(http.MethodGet, "/api/providers/netlify/resources", nil, env.bearer()); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a lister, got %d", rr.Code)
	}
}
