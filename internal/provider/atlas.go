package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
)

// AtlasClient talks to the MongoDB Atlas admin API using signed requests.
type AtlasClient struct {
	transport
	publicKey      string
	privateKey     string
	defaultProject string
	now            func() time.Time
}

var _ Client = (*AtlasClient)(nil)

// NewAtlasClient constructs an Atlas client. defaultProject scopes calls
// whose Ref carries no ProjectID.
func NewAtlasClient(baseURL, publicKey, privateKey, defaultProject string, httpClient *http.Client, timeout time.Duration) *AtlasClient {
	c := &AtlasClient{
		transport:      newTransport(domain.ProviderAtlas, baseURL, httpClient, timeout),
		publicKey:      strings.TrimSpace(publicKey),
		privateKey:     strings.TrimSpace(privateKey),
		defaultProject: strings.TrimSpace(defaultProject),
		now:            time.Now,
	}
	c.authorize = func(req *http.Request, path string, body []byte) error {
		if c.publicKey == "" || c.privateKey == "" {
			return ErrNotConfigured
		}
		req.Header.Set("Authorization", SignAtlasRequest(c.publicKey, c.privateKey, req.Method, path, body, c.now()))
		return nil
	}
	return c
}

// SignAtlasRequest renders the Digest authorization header for one request.
// The signature is base64(HMAC-SHA256(privateKey, METHOD\nPATH\nTIMESTAMP\nBODY))
// with TIMESTAMP in unix milliseconds, which doubles as the nonce.
func SignAtlasRequest(publicKey, privateKey, method, path string, body []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write([]byte(method + "\n" + path + "\n" + timestamp + "\n"))
	mac.Write(body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf(`Digest username="%s", realm="MMS Public API", nonce="%s", uri="%s", response="%s", opaque=""`,
		publicKey, timestamp, path, signature)
}

// ProjectFor resolves the project scope for ref.
func (c *AtlasClient) ProjectFor(ref Ref) (string, error) {
	if p := strings.TrimSpace(ref.ProjectID); p != "" {
		return p, nil
	}
	if c.defaultProject != "" {
		return c.defaultProject, nil
	}
	return "", ErrMissingProject
}

// GetHealth fetches a cluster's status. ref.ID is the cluster name.
func (c *AtlasClient) GetHealth(ctx context.Context, ref Ref) (Health, error) {
	project, err := c.ProjectFor(ref)
	if err != nil {
		return nil, err
	}
	if ref.ID == "" {
		return nil, errors.New("atlas cluster name required")
	}
	path := fmt.Sprintf("/groups/%s/clusters/%s/status", url.PathEscape(project), url.PathEscape(ref.ID))
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("decode atlas cluster status: %w", err)
	}
	return AtlasHealth{
		StateName: firstString(obj, []string{"stateName"}),
		Body:      body,
	}, nil
}

// GetDeploys is not offered by Atlas.
func (c *AtlasClient) GetDeploys(context.Context, Ref) ([]Deploy, error) {
	return nil, ErrUnsupported
}

// ListAll enumerates the clusters of the resolved project.
func (c *AtlasClient) ListAll(ctx context.Context, ref Ref) ([]Resource, error) {
	project, err := c.ProjectFor(ref)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, fmt.Sprintf("/groups/%s/clusters", url.PathEscape(project)))
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("decode atlas clusters: %w", err)
	}
	items, _ := obj["results"].([]any)
	resources := make([]Resource, 0, len(items))
	for _, item := range items {
		if cluster, ok := item.(map[string]any); ok {
			resources = append(resources, resourceFrom(cluster, "name", "name"))
		}
	}
	return resources, nil
}
