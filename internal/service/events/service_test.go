package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/ws"
)

type capture struct {
	projectID string
	payload   []byte
	full      bool
}

func (c *capture) Broadcast(projectID string, payload []byte) bool {
	if c.full {
		return false
	}
	c.projectID = projectID
	c.payload = payload
	return true
}

func TestStatusChangedPublishesToProject(t *testing.T) {
	pub := &capture{}
	svc := New(pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	at := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	svc.StatusChanged(context.Background(), domain.Service{ID: "s1", ProjectID: "p1", Name: "api", Provider: domain.ProviderRender, Status: domain.StatusUp}, domain.StatusDown)

	if pub.projectID != "p1" {
		t.Fatalf("expected project p1, got %q", pub.projectID)
	}
	var event StatusEvent
	if err := json.Unmarshal(pub.payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != TypeStatusChanged || event.Status != domain.StatusDown || event.PreviousStatus != domain.StatusUp {
		t.Fatalf("unexpected event %+v", event)
	}
	if !event.At.Equal(at) {
		t.Fatalf("expected timestamp %s, got %s", at, event.At)
	}
}

func TestStatusChangedDropsWhenQueueFull(t *testing.T) {
	pub := &capture{full: true}
	svc := New(pub, slog.New(slog.NewTextHandler(io.Discard, nil)))

	svc.StatusChanged(context.Background(), domain.Service{ID: "s1", ProjectID: "p1"}, domain.StatusDown)

	if pub.payload != nil {
		t.Fatalf("expected no payload to be recorded, got %q", pub.payload)
	}
}

type wedgedSubscriber struct {
	release chan struct{}
}

func (s *wedgedSubscriber) Send([]byte) error {
	<-s.release
	return nil
}

func (s *wedgedSubscriber) Close() {}

func TestStatusChangedReturnsWithWedgedStreamSubscriber(t *testing.T) {
	hub := ws.NewHub()
	defer hub.Close()
	wedged := &wedgedSubscriber{release: make(chan struct{})}
	defer close(wedged.release)
	hub.Register(ws.AllProjects, wedged)

	svc := New(hub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			svc.StatusChanged(context.Background(), domain.Service{ID: "s1", ProjectID: "p1", Status: domain.StatusDown}, domain.StatusUp)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("status notifications blocked behind a wedged subscriber")
	}
}
