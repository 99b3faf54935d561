package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNetlifyGetHealthFallsBackToDefaultSite(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":"site-default","state":"current","ssl_url":"https://site.netlify.app"}`))
	}))
	defer srv.Close()

	client := NewNetlifyClient(srv.URL, "nf_token", "site-default", srv.Client(), time.Second)
	health, err := client.GetHealth(context.Background(), Ref{})
	if err != nil {
		t.Fatalf("GetHealth returned error: %v", err)
	}
	if gotPath != "/sites/site-default" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer nf_token" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	nh := health.(NetlifyHealth)
	if nh.State != "current" || nh.URL != "https://site.netlify.app" {
		t.Fatalf("unexpected health %+v", nh)
	}
}

func TestNetlifyListAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a","name":"alpha"},{"id":"b","name":"beta"}]`))
	}))
	defer srv.Close()

	client := NewNetlifyClient(srv.URL, "t", "", srv.Client(), time.Second)
	sites, err := client.ListAll(context.Background(), Ref{})
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(sites) != 2 || sites[1].ID != "b" || sites[1].Name != "beta" {
		t.Fatalf("unexpected sites %+v", sites)
	}
}
