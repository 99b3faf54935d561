package syncengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/provider"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
)

// ListResources enumerates the provider account behind p, for picking a
// providerInternalId when registering a service. projectID scopes Atlas and
// falls back to MONGODB_ATLAS_PROJECT_ID.
func (e *Engine) ListResources(ctx context.Context, p domain.Provider, projectID string) ([]provider.Resource, error) {
	switch p {
	case domain.ProviderRender, domain.ProviderNetlify, domain.ProviderAtlas:
	default:
		return nil, fmt.Errorf("provider %q has no resource listing: %w", p, repository.ErrInvalidArgument)
	}
	client, missing := e.clientFor(p)
	if missing != "" {
		return nil, fmt.Errorf("%w: %s not set", provider.ErrNotConfigured, missing)
	}
	resources, err := client.ListAll(ctx, provider.Ref{ProjectID: strings.TrimSpace(projectID)})
	if err != nil {
		if errors.Is(err, provider.ErrMissingProject) {
			return nil, fmt.Errorf("%w: %w", repository.ErrInvalidArgument, err)
		}
		e.log.Warn("list provider resources failed", "provider", p, "error", err)
		return nil, fmt.Errorf("list %s resources: %w", p, err)
	}
	return resources, nil
}
