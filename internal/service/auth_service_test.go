package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/repository"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

func newAuthService() *AuthService {
	return NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}, repository.NewMemoryUserRepository())
}

func TestAuthService_SignUpAndSignIn(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	user, token, exp, err := svc.SignUp(ctx, "Ada", " Ada@Example.com ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "s3cret", user.PasswordHash)
	assert.NotEmpty(t, token)
	assert.False(t, exp.IsZero())

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID())

	signedIn, token, _, err := svc.SignIn(ctx, "ADA@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, signedIn.ID)
	assert.NotEmpty(t, token)
}

func TestAuthService_Errors(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, _, _, err := svc.SignUp(ctx, "Ada", "ada@example.com", "pw")
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		code string
	}{
		{"duplicate email", func() error {
			_, _, _, err := svc.SignUp(ctx, "Other", "ADA@example.com", "pw")
			return err
		}, "CONFLICT"},
		{"missing sign-up fields", func() error {
			_, _, _, err := svc.SignUp(ctx, "", "x@example.com", "pw")
			return err
		}, "VALIDATION_FAILED"},
		{"unknown email", func() error {
			_, _, _, err := svc.SignIn(ctx, "nobody@example.com", "pw")
			return err
		}, "UNAUTHORIZED"},
		{"wrong password", func() error {
			_, _, _, err := svc.SignIn(ctx, "ada@example.com", "nope")
			return err
		}, "UNAUTHORIZED"},
		{"missing sign-in fields", func() error {
			_, _, _, err := svc.SignIn(ctx, "ada@example.com", "")
			return err
		}, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.ToDomainError(err).Code)
		})
	}
}
