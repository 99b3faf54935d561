package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
	"github.com/dotanscherzer/projects-Dasboard/pkg/config"
)

type memUsers struct {
	byEmail map[string]domain.User
}

func (m *memUsers) CreateUser(_ context.Context, user *domain.User) error {
	if _, ok := m.byEmail[user.Email]; ok {
		return repository.ErrConflict
	}
	m.byEmail[user.Email] = *user
	return nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func newAuth() Service {
	cfg := config.APIConfig{JWTSecret: "test-secret", JWTExpiresIn: time.Hour}
	return New(&memUsers{byEmail: map[string]domain.User{}}, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func TestRegisterLoginAuthorize(t *testing.T) {
	svc := newAuth()
	ctx := context.Background()

	user, token, err := svc.Register(ctx, " Dev@Example.com ", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "dev@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if token.AccessToken == "" {
		t.Fatal("expected token")
	}

	_, login, err := svc.Login(ctx, "dev@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	authed, claims, err := svc.Authorize(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if authed.ID != user.ID || claims.Email != "dev@example.com" {
		t.Fatalf("unexpected authorization result %+v %+v", authed, claims)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuth()
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, "not-an-email", "long-enough"); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if _, _, err := svc.Register(ctx, "a@b.io", "short"); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected short password rejection, got %v", err)
	}
	if _, _, err := svc.Register(ctx, "a@b.io", "long-enough"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Register(ctx, "a@b.io", "long-enough"); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuth()
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, "a@b.io", "long-enough"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "a@b.io", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@b.io", "long-enough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	if _, _, err := svc.Authorize(ctx, "garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
