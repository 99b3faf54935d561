// Package provider wraps the third-party status APIs polled by the sync
// engine behind one client shape.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
)

// ErrUnsupported is returned by operations a provider does not offer.
var ErrUnsupported = errors.New("provider: operation not supported")

// ErrMissingProject is returned by Atlas calls without a project scope.
var ErrMissingProject = errors.New("provider: atlas project id required")

// ErrNotConfigured is returned when a client lacks credentials.
var ErrNotConfigured = errors.New("provider: credentials not configured")

// Ref identifies a provider resource. ProjectID overrides the client's
// default project scope where the provider has one.
type Ref struct {
	ID        string
	ProjectID string
}

// Client is the uniform surface of every provider integration.
type Client interface {
	GetHealth(ctx context.Context, ref Ref) (Health, error)
	GetDeploys(ctx context.Context, ref Ref) ([]Deploy, error)
	ListAll(ctx context.Context, ref Ref) ([]Resource, error)
}

// Health is a typed provider health response. Concrete values are
// RenderHealth, NetlifyHealth and AtlasHealth.
type Health interface {
	Provider() domain.Provider
	Raw() json.RawMessage
}

// RenderHealth is the subset of a Render service response that drives
// normalization.
type RenderHealth struct {
	HealthCheckStatus string
	// Suspended holds the suspension marker: "" when absent or false,
	// "not_suspended", or any other truthy value.
	Suspended string
	URL       string
	Body      json.RawMessage
}

// Provider implements Health.
func (RenderHealth) Provider() domain.Provider { return domain.ProviderRender }

// Raw implements Health.
func (h RenderHealth) Raw() json.RawMessage { return h.Body }

// NetlifyHealth is a Netlify site state.
type NetlifyHealth struct {
	State string
	URL   string
	Body  json.RawMessage
}

// Provider implements Health.
func (NetlifyHealth) Provider() domain.Provider { return domain.ProviderNetlify }

// Raw implements Health.
func (h NetlifyHealth) Raw() json.RawMessage { return h.Body }

// AtlasHealth is an Atlas cluster state.
type AtlasHealth struct {
	StateName string
	Body      json.RawMessage
}

// Provider implements Health.
func (AtlasHealth) Provider() domain.Provider { return domain.ProviderAtlas }

// Raw implements Health.
func (h AtlasHealth) Raw() json.RawMessage { return h.Body }

// Deploy is one deploy record. Field names vary between providers and API
// versions, so the decoded object is kept as-is.
type Deploy map[string]any

// Keys lists the deploy object's field names in sorted order.
func (d Deploy) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the named field when it is a non-empty string.
func (d Deploy) String(field string) string {
	if v, ok := d[field].(string); ok {
		return v
	}
	return ""
}

// Resource is an entry returned by ListAll.
type Resource struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Body json.RawMessage `json:"raw"`
}

// APIError is a non-2xx provider response.
type APIError struct {
	Provider   domain.Provider
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s api returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s api returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status of an APIError anywhere in err's
// chain; it returns 0 for transport failures.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
