package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/repository"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// SignUp creates a new account and returns it with an access token.
func (s *AuthService) SignUp(ctx context.Context, name, email, password string) (*domain.User, string, time.Time, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("all fields are required", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("user already exists", nil)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", time.Time{}, apperrors.NewInternalError(fmt.Errorf("lookup user: %w", err))
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, "", time.Time{}, apperrors.NewConflict("user already exists", nil)
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(fmt.Errorf("create user: %w", err))
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(fmt.Errorf("sign token: %w", err))
	}
	return user, token, exp, nil
}

// SignIn authenticates by email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(fmt.Errorf("lookup user: %w", err))
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(fmt.Errorf("sign token: %w", err))
	}
	return user, token, exp, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
