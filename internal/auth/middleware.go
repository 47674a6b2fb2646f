package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/repository"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// UserID returns the caller's canonical id.
func (p *Principal) UserID() string {
	if p == nil || p.User == nil {
		return ""
	}
	return domain.CanonicalID(p.User.ID)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	return m.authenticate(c, token)
}

// Optional authenticates when a token is present in the Authorization header
// or the "token" query parameter, and otherwise lets the request through
// anonymously. With required set, a missing token is rejected.
func (m *AuthMiddleware) Optional(required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if header := c.Get(fiber.HeaderAuthorization); header != "" {
			parsed, err := bearerToken(header)
			if err != nil {
				return err
			}
			token = parsed
		}
		if token == "" {
			if required {
				return apperrors.NewUnauthorized("missing token")
			}
			return c.Next()
		}
		return m.authenticate(c, token)
	}
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx, token string) error {
	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.UserID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{User: user})
	return c.Next()
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
