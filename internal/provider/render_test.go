package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRenderGetHealthReadsNestedStatus(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"service":{"suspended":"not_suspended","serviceDetails":{"healthCheckStatus":"Healthy","url":"https://api.example.com"}}}`))
	}))
	defer srv.Close()

	client := NewRenderClient(srv.URL, "rnd_key", srv.Client(), time.Second)
	health, err := client.GetHealth(context.Background(), Ref{ID: "srv-1"})
	if err != nil {
		t.Fatalf("GetHealth returned error: %v", err)
	}
	if gotAuth != "Bearer rnd_key" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotPath != "/services/srv-1" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	rh, ok := health.(RenderHealth)
	if !ok {
		t.Fatalf("expected RenderHealth, got %T", health)
	}
	if rh.HealthCheckStatus != "Healthy" || rh.Suspended != "not_suspended" || rh.URL != "https://api.example.com" {
		t.Fatalf("unexpected health %+v", rh)
	}
	if len(rh.Raw()) == 0 {
		t.Fatal("expected raw body to be kept")
	}
}

func TestRenderGetHealthTopLevelFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"suspended":true}`))
	}))
	defer srv.Close()

	client := NewRenderClient(srv.URL, "k", srv.Client(), time.Second)
	health, err := client.GetHealth(context.Background(), Ref{ID: "srv-2"})
	if err != nil {
		t.Fatalf("GetHealth returned error: %v", err)
	}
	rh := health.(RenderHealth)
	if rh.HealthCheckStatus != "" || rh.Suspended != "suspended" {
		t.Fatalf("unexpected health %+v", rh)
	}
}

func TestRenderGetDeploysUnwrapsItems(t *testing.T) {
	cases := map[string]string{
		"wrapped array": `[{"deploy":{"id":"d1","status":"live","createdAt":"2025-01-02T03:04:05Z"}},{"deploy":{"id":"d0"}}]`,
		"plain array":   `[{"id":"d1","status":"live","createdAt":"2025-01-02T03:04:05Z"}]`,
		"object":        `{"deploy":[{"id":"d1","status":"live","createdAt":"2025-01-02T03:04:05Z"}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/services/srv-1/deploys" {
					t.Errorf("unexpected path %q", r.URL.Path)
				}
				_, _ = w.Write([]byte(payload))
			}))
			defer srv.Close()

			client := NewRenderClient(srv.URL, "k", srv.Client(), time.Second)
			deploys, err := client.GetDeploys(context.Background(), Ref{ID: "srv-1"})
			if err != nil {
				t.Fatalf("GetDeploys returned error: %v", err)
			}
			if len(deploys) == 0 {
				t.Fatal("expected deploys")
			}
			if deploys[0].String("id") != "d1" || deploys[0].String("status") != "live" {
				t.Fatalf("unexpected first deploy %v", deploys[0])
			}
		})
	}
}

func TestRenderErrorCarriesStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewRenderClient(srv.URL, "k", srv.Client(), time.Second)
	_, err := client.GetHealth(context.Background(), Ref{ID: "missing"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", StatusCode(err))
	}
}

func TestRenderWithoutKeyFailsBeforeSending(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewRenderClient(srv.URL, "", srv.Client(), time.Second)
	_, err := client.GetHealth(context.Background(), Ref{ID: "srv"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if called {
		t.Fatal("request should not be sent without credentials")
	}
}
