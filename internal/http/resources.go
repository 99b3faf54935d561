package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/envvar"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/metric"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/project"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/registry"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/workitem"
)

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		q := req.URL.Query()
		projects, err := r.projects.List(req.Context(), domain.ProjectFilter{
			Status:         strings.TrimSpace(q.Get("status")),
			LifecycleStage: strings.TrimSpace(q.Get("lifecycleStage")),
			Priority:       strings.TrimSpace(q.Get("priority")),
			Tag:            strings.TrimSpace(q.Get("tag")),
		})
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	case http.MethodPost:
		var payload project.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		proj, err := r.projects.Create(req.Context(), payload)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, proj)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProject(w http.ResponseWriter, req *http.Request) {
	projectID := strings.TrimSpace(req.PathValue("id"))
	if projectID == "" {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		details, err := r.projects.Details(req.Context(), projectID)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, details)
	case http.MethodPut:
		var payload project.UpdateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		proj, err := r.projects.Update(req.Context(), projectID, payload)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, proj)
	case http.MethodDelete:
		if err := r.projects.Delete(req.Context(), projectID); err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleServices(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		q := req.URL.Query()
		services, err := r.registry.List(req.Context(), domain.ServiceFilter{
			ProjectID: strings.TrimSpace(q.Get("projectId")),
			Type:      domain.ServiceType(strings.TrimSpace(q.Get("type"))),
			Provider:  domain.Provider(strings.TrimSpace(q.Get("provider"))),
			Status:    domain.ServiceStatus(strings.TrimSpace(q.Get("status"))),
		})
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, services)
	case http.MethodPost:
		var payload registry.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		svc, err := r.registry.Create(req.Context(), payload)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, svc)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleService(w http.ResponseWriter, req *http.Request) {
	serviceID := strings.TrimSpace(req.PathValue("id"))
	if serviceID == "" {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		svc, err := r.registry.Get(req.Context(), serviceID)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, svc)
	case http.MethodPut:
		// Status fields are not part of the update shape and are ignored if sent.
		var payload domain.ServiceMetadataUpdate
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		svc, err := r.registry.Update(req.Context(), serviceID, payload)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, svc)
	case http.MethodDelete:
		if err := r.registry.Delete(req.Context(), serviceID); err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleServiceEnv(w http.ResponseWriter, req *http.Request) {
	serviceID := strings.TrimSpace(req.PathValue("id"))
	switch req.Method {
	case http.MethodGet:
		reveal, _ := strconv.ParseBool(req.URL.Query().Get("reveal"))
		vars, err := r.envVars.List(req.Context(), serviceID, reveal)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, vars)
	case http.MethodPut:
		var payload struct {
			Vars []envvar.Input `json:"vars"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		vars, err := r.envVars.Set(req.Context(), serviceID, payload.Vars)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, vars)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleServiceEnvKey(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	serviceID := strings.TrimSpace(req.PathValue("id"))
	key := strings.TrimSpace(req.PathValue("key"))
	if err := r.envVars.Delete(req.Context(), serviceID, key); err != nil {
		r.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		q := req.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		metrics, err := r.metrics.List(req.Context(), domain.MetricFilter{
			ServiceID: strings.TrimSpace(q.Get("serviceId")),
			Name:      strings.TrimSpace(q.Get("metricName")),
			Limit:     limit,
		})
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, metrics)
	case http.MethodPost:
		var payload metric.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		m, err := r.metrics.Create(req.Context(), payload)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleWorkItems(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		q := req.URL.Query()
		items, err := r.workItems.List(req.Context(), domain.WorkItemFilter{
			ProjectID: strings.TrimSpace(q.Get("projectId")),
			Status:    strings.TrimSpace(q.Get("status")),
			Type:      strings.TrimSpace(q.Get("type")),
			Priority:  strings.TrimSpace(q.Get("priority")),
		})
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var payload workitem.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		item, err := r.workItems.Create(req.Context(), payload)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleWorkItem(w http.ResponseWriter, req *http.Request) {
	itemID := strings.TrimSpace(req.PathValue("id"))
	if itemID == "" {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		item, err := r.workItems.Get(req.Context(), itemID)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPut:
		var payload workitem.UpdateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		item, err := r.workItems.Update(req.Context(), itemID, payload)
		if err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if err := r.workItems.Delete(req.Context(), itemID); err != nil {
			r.fail(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

// handleProviderResources lists what a provider account exposes so a service
// can be registered against the right providerInternalId.
func (r *Router) handleProviderResources(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.resources == nil {
		writeError(w, http.StatusServiceUnavailable, "provider discovery not configured")
		return
	}
	p := domain.Provider(strings.TrimSpace(req.PathValue("provider")))
	resources, err := r.resources.ListResources(req.Context(), p, strings.TrimSpace(req.URL.Query().Get("projectId")))
	if err != nil {
		r.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	summary, err := r.summary.Build(req.Context())
	if err != nil {
		r.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
