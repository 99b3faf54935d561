// Package status maps provider health vocabularies onto the dashboard's
// status enum.
package status

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/provider"
)

// Normalize maps a typed provider health response to a service status.
func Normalize(h provider.Health) domain.ServiceStatus {
	switch typed := h.(type) {
	case provider.RenderHealth:
		return Render(typed)
	case provider.NetlifyHealth:
		return Netlify(typed)
	case provider.AtlasHealth:
		return Atlas(typed)
	default:
		return domain.StatusUnknown
	}
}

// Render prefers the health-check status and otherwise falls back to the
// suspension marker.
func Render(h provider.RenderHealth) domain.ServiceStatus {
	if h.HealthCheckStatus != "" {
		switch strings.ToLower(strings.TrimSpace(h.HealthCheckStatus)) {
		case "healthy", "ok":
			return domain.StatusUp
		case "unhealthy", "failing":
			return domain.StatusDown
		default:
			return domain.StatusUnknown
		}
	}
	switch {
	case h.Suspended == "not_suspended":
		if strings.TrimSpace(h.URL) != "" {
			return domain.StatusUp
		}
		return domain.StatusUnknown
	case h.Suspended != "":
		return domain.StatusDown
	default:
		return domain.StatusUnknown
	}
}

// Netlify treats ready and current sites as up.
func Netlify(h provider.NetlifyHealth) domain.ServiceStatus {
	switch h.State {
	case "ready", "current":
		return domain.StatusUp
	default:
		return domain.StatusDegraded
	}
}

// Atlas treats IDLE clusters as up.
func Atlas(h provider.AtlasHealth) domain.ServiceStatus {
	if h.StateName == "IDLE" {
		return domain.StatusUp
	}
	return domain.StatusDegraded
}

// FromError maps a failed health fetch to a status. Atlas authentication
// and lookup failures are configuration problems and stay unknown.
func FromError(p domain.Provider, err error) domain.ServiceStatus {
	if p == domain.ProviderAtlas {
		if errors.Is(err, provider.ErrMissingProject) {
			return domain.StatusUnknown
		}
		switch provider.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return domain.StatusUnknown
		}
	}
	return domain.StatusDown
}

// IsAuthFailure reports whether err is a 401 or 403 provider response.
func IsAuthFailure(err error) bool {
	code := provider.StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// Automation maps a reported run outcome.
func Automation(run domain.RunStatus) domain.ServiceStatus {
	if run == domain.RunSuccess {
		return domain.StatusOK
	}
	return domain.StatusFailing
}

// HealthMetricValue is the value recorded for the health metric of a
// successful fetch.
func HealthMetricValue(h provider.Health, normalized domain.ServiceStatus) string {
	switch typed := h.(type) {
	case provider.NetlifyHealth:
		if typed.State != "" {
			return typed.State
		}
		return "unknown"
	case provider.AtlasHealth:
		if typed.StateName != "" {
			return typed.StateName
		}
		return "unknown"
	default:
		return string(normalized)
	}
}
