package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
)

// RenderClient talks to the Render REST API with a bearer key.
type RenderClient struct {
	transport
	apiKey      string
	deployLimit int
}

var _ Client = (*RenderClient)(nil)

// NewRenderClient constructs a Render client. httpClient may be nil.
func NewRenderClient(baseURL, apiKey string, httpClient *http.Client, timeout time.Duration) *RenderClient {
	c := &RenderClient{
		transport:   newTransport(domain.ProviderRender, baseURL, httpClient, timeout),
		apiKey:      strings.TrimSpace(apiKey),
		deployLimit: 5,
	}
	c.authorize = func(req *http.Request, _ string, _ []byte) error {
		if c.apiKey == "" {
			return ErrNotConfigured
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return nil
	}
	return c
}

// GetHealth fetches a service and extracts its health indicators. The
// health-check status may sit under service.serviceDetails, serviceDetails
// or at the top level depending on the API version.
func (c *RenderClient) GetHealth(ctx context.Context, ref Ref) (Health, error) {
	if ref.ID == "" {
		return nil, errors.New("render service id required")
	}
	body, err := c.get(ctx, "/services/"+url.PathEscape(ref.ID))
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("decode render service: %w", err)
	}
	return RenderHealth{
		HealthCheckStatus: firstString(obj,
			[]string{"service", "serviceDetails", "healthCheckStatus"},
			[]string{"serviceDetails", "healthCheckStatus"},
			[]string{"healthCheckStatus"},
		),
		Suspended: suspendedMarker(obj),
		URL: firstString(obj,
			[]string{"service", "serviceDetails", "url"},
			[]string{"serviceDetails", "url"},
			[]string{"url"},
		),
		Body: body,
	}, nil
}

func suspendedMarker(obj map[string]any) string {
	for _, path := range [][]string{{"service", "suspended"}, {"suspended"}} {
		v, ok := lookup(obj, path...)
		if !ok {
			continue
		}
		switch typed := v.(type) {
		case string:
			if typed != "" {
				return typed
			}
		case bool:
			if typed {
				return "suspended"
			}
		}
	}
	return ""
}

// GetDeploys returns the most recent deploys, newest first. The API answers
// either with an array (items possibly wrapped as {"deploy": {...}}) or an
// object holding a "deploy" array.
func (c *RenderClient) GetDeploys(ctx context.Context, ref Ref) ([]Deploy, error) {
	if ref.ID == "" {
		return nil, errors.New("render service id required")
	}
	path := fmt.Sprintf("/services/%s/deploys?limit=%d", url.PathEscape(ref.ID), c.deployLimit)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	decoded, err := decodeAny(body)
	if err != nil {
		return nil, fmt.Errorf("decode render deploys: %w", err)
	}
	switch typed := decoded.(type) {
	case []any:
		return toDeploys(typed), nil
	case map[string]any:
		if items, ok := typed["deploy"].([]any); ok {
			return toDeploys(items), nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

// ListAll enumerates every service visible to the API key.
func (c *RenderClient) ListAll(ctx context.Context, _ Ref) ([]Resource, error) {
	body, err := c.get(ctx, "/services?limit=100")
	if err != nil {
		return nil, err
	}
	decoded, err := decodeAny(body)
	if err != nil {
		return nil, fmt.Errorf("decode render services: %w", err)
	}
	items, _ := decoded.([]any)
	resources := make([]Resource, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if inner, ok := obj["service"].(map[string]any); ok {
			obj = inner
		}
		resources = append(resources, resourceFrom(obj, "id", "name"))
	}
	return resources, nil
}
