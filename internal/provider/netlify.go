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

// NetlifyClient talks to the Netlify REST API with a personal access token.
type NetlifyClient struct {
	transport
	token       string
	defaultSite string
	deployLimit int
}

var _ Client = (*NetlifyClient)(nil)

// NewNetlifyClient constructs a Netlify client. defaultSite is used when a
// call carries no site id.
func NewNetlifyClient(baseURL, token, defaultSite string, httpClient *http.Client, timeout time.Duration) *NetlifyClient {
	c := &NetlifyClient{
		transport:   newTransport(domain.ProviderNetlify, baseURL, httpClient, timeout),
		token:       strings.TrimSpace(token),
		defaultSite: strings.TrimSpace(defaultSite),
		deployLimit: 5,
	}
	c.authorize = func(req *http.Request, _ string, _ []byte) error {
		if c.token == "" {
			return ErrNotConfigured
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		return nil
	}
	return c
}

func (c *NetlifyClient) siteID(ref Ref) (string, error) {
	if id := strings.TrimSpace(ref.ID); id != "" {
		return id, nil
	}
	if c.defaultSite != "" {
		return c.defaultSite, nil
	}
	return "", errors.New("netlify site id required")
}

// GetHealth fetches a site and reports its state.
func (c *NetlifyClient) GetHealth(ctx context.Context, ref Ref) (Health, error) {
	site, err := c.siteID(ref)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, "/sites/"+url.PathEscape(site))
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("decode netlify site: %w", err)
	}
	return NetlifyHealth{
		State: firstString(obj, []string{"state"}),
		URL:   firstString(obj, []string{"ssl_url"}, []string{"url"}),
		Body:  body,
	}, nil
}

// GetDeploys returns the site's most recent deploys, newest first.
func (c *NetlifyClient) GetDeploys(ctx context.Context, ref Ref) ([]Deploy, error) {
	site, err := c.siteID(ref)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/sites/%s/deploys?per_page=%d", url.PathEscape(site), c.deployLimit)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	decoded, err := decodeAny(body)
	if err != nil {
		return nil, fmt.Errorf("decode netlify deploys: %w", err)
	}
	items, _ := decoded.([]any)
	return toDeploys(items), nil
}

// ListAll enumerates every site visible to the token.
func (c *NetlifyClient) ListAll(ctx context.Context, _ Ref) ([]Resource, error) {
	body, err := c.get(ctx, "/sites")
	if err != nil {
		return nil, err
	}
	decoded, err := decodeAny(body)
	if err != nil {
		return nil, fmt.Errorf("decode netlify sites: %w", err)
	}
	items, _ := decoded.([]any)
	resources := make([]Resource, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			resources = append(resources, resourceFrom(obj, "id", "name"))
		}
	}
	return resources, nil
}
