package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dotanscherzer/projects-Dasboard/internal/service/metric"
	"github.com/dotanscherzer/projects-Dasboard/internal/syncengine"
)

const webhookSignatureHeader = "X-Webhook-Signature"

func (r *Router) runPass(w http.ResponseWriter, req *http.Request, pass func(context.Context) (syncengine.Report, error)) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if r.sync == nil {
		writeError(w, http.StatusServiceUnavailable, "sync engine not configured")
		return
	}
	report, err := pass(req.Context())
	if err != nil {
		r.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (r *Router) handleSyncHealth(w http.ResponseWriter, req *http.Request) {
	r.runPass(w, req, func(ctx context.Context) (syncengine.Report, error) { return r.sync.SyncHealth(ctx) })
}

func (r *Router) handleSyncDeploys(w http.ResponseWriter, req *http.Request) {
	r.runPass(w, req, func(ctx context.Context) (syncengine.Report, error) { return r.sync.SyncDeploys(ctx) })
}

func (r *Router) handleSyncDBHealth(w http.ResponseWriter, req *http.Request) {
	r.runPass(w, req, func(ctx context.Context) (syncengine.Report, error) { return r.sync.SyncDBHealth(ctx) })
}

func (r *Router) handleAutomationHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if r.staleness == nil {
		writeError(w, http.StatusServiceUnavailable, "staleness detector not configured")
		return
	}
	report, err := r.staleness.Run(req.Context())
	if err != nil {
		r.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (r *Router) handleCleanup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	days := r.retentionDays
	if raw := strings.TrimSpace(req.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}
	if days <= 0 {
		days = metric.DefaultRetentionDays
	}
	deleted, err := r.metrics.Cleanup(req.Context(), days)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":    deleted,
		"daysToKeep": days,
	})
}

func (r *Router) handleMakeReport(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if r.webhook == nil {
		writeError(w, http.StatusServiceUnavailable, "webhook ingestor not configured")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	if err := r.webhook.VerifySignature(body, req.Header.Get(webhookSignatureHeader)); err != nil {
		r.logger.Warn("webhook signature rejected", "error", err)
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := r.webhook.HandlePayload(req.Context(), body); err != nil {
		r.fail(w, req, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}
