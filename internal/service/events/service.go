// Package events turns service status transitions into stream messages.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/telemetry"
)

// TypeStatusChanged is the event type for status transitions.
const TypeStatusChanged = "service.status_changed"

// Publisher fans payloads out to a project's subscribers. Broadcast must
// not block; it reports false when the event was dropped.
type Publisher interface {
	Broadcast(projectID string, payload []byte) bool
}

// StatusEvent is the message sent to stream subscribers.
type StatusEvent struct {
	Type           string               `json:"type"`
	ProjectID      string               `json:"projectId"`
	ServiceID      string               `json:"serviceId"`
	Name           string               `json:"name"`
	Provider       domain.Provider      `json:"provider"`
	Status         domain.ServiceStatus `json:"status"`
	PreviousStatus domain.ServiceStatus `json:"previousStatus"`
	At             time.Time            `json:"at"`
}

// Service publishes status events.
type Service struct {
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New returns an events service.
func New(publisher Publisher, logger *slog.Logger) *Service {
	return &Service{publisher: publisher, logger: logger, now: time.Now}
}

// StatusChanged publishes a transition of svc to next.
func (s *Service) StatusChanged(_ context.Context, svc domain.Service, next domain.ServiceStatus) {
	payload, err := json.Marshal(StatusEvent{
		Type:           TypeStatusChanged,
		ProjectID:      svc.ProjectID,
		ServiceID:      svc.ID,
		Name:           svc.Name,
		Provider:       svc.Provider,
		Status:         next,
		PreviousStatus: svc.Status,
		At:             s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("encode status event failed", "service_id", svc.ID, "error", err)
		return
	}
	if !s.publisher.Broadcast(svc.ProjectID, payload) {
		telemetry.ObserveDroppedEvent()
		s.logger.Warn("status event dropped, stream queue full", "service_id", svc.ID, "project_id", svc.ProjectID, "status", next)
	}
}
