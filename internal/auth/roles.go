package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// RequireUser ensures an authenticated user is attached to the request.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
