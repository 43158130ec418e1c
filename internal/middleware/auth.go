package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/paytrack/internal/apperr"
	"github.com/example/paytrack/internal/services"
)

const principalContextKey = "principal"

// AuthMiddleware resolves the bearer token through validator and loads the
// principal into context.
func AuthMiddleware(validator services.TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return apperr.UnauthorizedErr("No token provided")
		}

		principal, err := validator.Validate(c.UserContext(), token)
		if err != nil {
			if apperr.Is(err, apperr.Unauthorized) {
				return err
			}
			return apperr.Wrap(apperr.Unauthorized, "Authentication failed", err)
		}

		c.Locals(principalContextKey, principal)
		return c.Next()
	}
}

// GetPrincipal extracts the authenticated caller from context.
func GetPrincipal(c *fiber.Ctx) (*services.Principal, bool) {
	principal, ok := c.Locals(principalContextKey).(*services.Principal)
	return principal, ok && principal != nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
