package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/ws"
)

// handleStatusWS upgrades to a websocket carrying status events for one
// project, or for every project when project_id is omitted.
func (r *Router) handleStatusWS(w http.ResponseWriter, req *http.Request) {
	if _, ok := authInfoFromContext(req.Context()); !ok {
		r.logger.Error("auth context missing for status websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "status stream not configured")
		return
	}
	projectID := strings.TrimSpace(req.URL.Query().Get("project_id"))
	if projectID == "" {
		projectID = ws.AllProjects
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	release := r.trackStream("ws")
	r.hub.Register(projectID, client)
	go func() {
		defer func() {
			r.hub.Unregister(projectID, client)
			client.Close()
			release()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// handleProjectEvents streams status events for a project as SSE.
func (r *Router) handleProjectEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "status stream not configured")
		return
	}
	projectID := strings.TrimSpace(req.PathValue("id"))
	if _, err := r.projects.Get(req.Context(), projectID); err != nil {
		r.fail(w, req, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := ws.NewSSEClient(w, flusher, r.logger)
	defer r.trackStream("sse")()
	r.hub.Register(projectID, client)
	// Close before unregistering so an in-flight broadcast cannot write
	// after the handler returns.
	defer r.hub.Unregister(projectID, client)
	defer client.Close()

	if err := client.Heartbeat(); err != nil {
		return
	}
	ticker := time.NewTicker(sseHeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}
