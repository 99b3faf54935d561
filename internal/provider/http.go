package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
)

const (
	defaultTimeout   = 15 * time.Second
	maxErrorBodySize = 4096
	maxBodySize      = 4 << 20
)

// transport performs JSON requests against one provider base URL.
type transport struct {
	provider domain.Provider
	baseURL  string
	client   *http.Client
	// authorize decorates each request. path is the request path relative to
	// baseURL without its query; body is the exact request payload.
	authorize func(req *http.Request, path string, body []byte) error
}

func newTransport(p domain.Provider, baseURL string, client *http.Client, timeout time.Duration) transport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	} else if client.Timeout == 0 {
		client.Timeout = timeout
	}
	return transport{
		provider: p,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:   client,
	}
}

// get issues a GET to path (relative to baseURL, query included) and
// returns the raw body.
func (t transport) get(ctx context.Context, path string) ([]byte, error) {
	return t.do(ctx, http.MethodGet, path, nil)
}

func (t transport) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", t.provider, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.authorize != nil {
		signedPath, _, _ := strings.Cut(path, "?")
		if err := t.authorize(req, signedPath, body); err != nil {
			return nil, fmt.Errorf("authorize %s request: %w", t.provider, err)
		}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s request: %w", t.provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, t.errorForStatus(resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", t.provider, err)
	}
	return data, nil
}

func (t transport) errorForStatus(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &APIError{
		Provider:   t.provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(buf)),
	}
}

// decodeObject decodes a JSON object keeping numbers as json.Number.
func decodeObject(data []byte) (map[string]any, error) {
	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeAny decodes arbitrary JSON keeping numbers as json.Number.
func decodeAny(data []byte) (any, error) {
	var out any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// lookup walks nested objects along path.
func lookup(obj map[string]any, path ...string) (any, bool) {
	var current any = obj
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// firstString returns the first non-empty string found along paths.
func firstString(obj map[string]any, paths ...[]string) string {
	for _, path := range paths {
		if v, ok := lookup(obj, path...); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// toDeploys converts decoded JSON items into Deploy values, unwrapping
// items of the form {"deploy": {...}}.
func toDeploys(items []any) []Deploy {
	deploys := make([]Deploy, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if inner, ok := obj["deploy"].(map[string]any); ok {
			obj = inner
		}
		deploys = append(deploys, Deploy(obj))
	}
	return deploys
}

// resourceFrom builds a Resource from a decoded object.
func resourceFrom(obj map[string]any, idField, nameField string) Resource {
	raw, _ := json.Marshal(obj)
	return Resource{
		ID:   stringify(obj[idField]),
		Name: stringify(obj[nameField]),
		Body: raw,
	}
}

func stringify(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}
