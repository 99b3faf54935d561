package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
	"github.com/dotanscherzer/projects-Dasboard/pkg/config"
	"github.com/dotanscherzer/projects-Dasboard/pkg/crypto"
	jwtpkg "github.com/dotanscherzer/projects-Dasboard/pkg/jwt"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when a bearer token cannot be accepted.
	ErrUnauthorized = errors.New("unauthorized")
)

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// Token is an issued access token.
type Token struct {
	AccessToken string        `json:"token"`
	ExpiresIn   time.Duration `json:"-"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("valid email is required: %w", repository.ErrInvalidArgument)
	}
	return email, nil
}

// Register creates a user and issues a token.
func (s Service) Register(ctx context.Context, email, password string) (*domain.User, Token, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, Token{}, err
	}
	if len(password) < minPasswordLength {
		return nil, Token{}, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, repository.ErrInvalidArgument)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, Token{}, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, Token{}, err
	}
	token, err := s.issue(user)
	if err != nil {
		return nil, Token{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login authenticates a user and returns a token.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Token{}, ErrInvalidCredentials
		}
		return nil, Token{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, Token{}, ErrInvalidCredentials
	}
	token, err := s.issue(user)
	if err != nil {
		return nil, Token{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// Authorize validates a bearer token and returns the associated user and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, ErrUnauthorized
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}
	return user, claims, nil
}

func (s Service) issue(user *domain.User) (Token, error) {
	access, err := jwtpkg.GenerateToken(user.ID, user.Email, s.cfg.JWTSecret, s.cfg.JWTExpiresIn)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: access, ExpiresIn: s.cfg.JWTExpiresIn}, nil
}
