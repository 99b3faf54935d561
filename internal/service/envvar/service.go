package envvar

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
	"github.com/dotanscherzer/projects-Dasboard/pkg/crypto"
)

// Mask replaces secret values in listings.
const Mask = "********"

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ServiceLookup verifies the owning service exists.
type ServiceLookup interface {
	GetServiceByID(ctx context.Context, serviceID string) (*domain.Service, error)
}

// Input is one key/value to store.
type Input struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	IsSecret bool   `json:"isSecret"`
}

// EnvVar is a decrypted variable for API responses.
type EnvVar struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	IsSecret  bool      `json:"isSecret"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Service manages encrypted env vars per service.
type Service struct {
	vars     repository.EnvVarRepository
	services ServiceLookup
	key      string
	logger   *slog.Logger
	now      func() time.Time
}

// New returns an env var service. encryptionKey seeds AES-GCM.
func New(vars repository.EnvVarRepository, services ServiceLookup, encryptionKey string, logger *slog.Logger) Service {
	return Service{vars: vars, services: services, key: encryptionKey, logger: logger, now: time.Now}
}

// Set upserts every input for the service.
func (s Service) Set(ctx context.Context, serviceID string, inputs []Input) ([]EnvVar, error) {
	if _, err := s.services.GetServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if !keyPattern.MatchString(strings.TrimSpace(in.Key)) {
			return nil, fmt.Errorf("invalid env var key %q: %w", in.Key, repository.ErrInvalidArgument)
		}
	}
	out := make([]EnvVar, 0, len(inputs))
	for _, in := range inputs {
		ciphertext, err := crypto.EncryptString(s.key, in.Value)
		if err != nil {
			return nil, fmt.Errorf("encrypt %s: %w", in.Key, err)
		}
		v := &domain.EnvVar{
			ID:        uuid.NewString(),
			ServiceID: serviceID,
			Key:       strings.TrimSpace(in.Key),
			Value:     ciphertext,
			IsSecret:  in.IsSecret,
			UpdatedAt: s.now().UTC(),
		}
		if err := s.vars.UpsertEnvVar(ctx, v); err != nil {
			return nil, err
		}
		out = append(out, view(v.Key, in.Value, v.IsSecret, v.UpdatedAt, false))
	}
	s.logger.Info("env vars updated", "service_id", serviceID, "count", len(inputs))
	return out, nil
}

// List decrypts a service's variables. Secret values are masked unless
// reveal is set; undecryptable entries are skipped.
func (s Service) List(ctx context.Context, serviceID string, reveal bool) ([]EnvVar, error) {
	if _, err := s.services.GetServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}
	stored, err := s.vars.ListEnvVarsByService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	out := make([]EnvVar, 0, len(stored))
	for _, item := range stored {
		value, err := crypto.DecryptToString(s.key, item.Value)
		if err != nil {
			s.logger.Warn("failed to decrypt env var", "service_id", serviceID, "key", item.Key, "error", err)
			continue
		}
		out = append(out, view(item.Key, value, item.IsSecret, item.UpdatedAt, reveal))
	}
	return out, nil
}

// Delete removes one variable.
func (s Service) Delete(ctx context.Context, serviceID, key string) error {
	return s.vars.DeleteEnvVar(ctx, serviceID, key)
}

func view(key, value string, secret bool, updated time.Time, reveal bool) EnvVar {
	if secret && !reveal {
		value = Mask
	}
	return EnvVar{Key: key, Value: value, IsSecret: secret, UpdatedAt: updated}
}
