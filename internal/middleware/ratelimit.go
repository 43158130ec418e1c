package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/example/paytrack/internal/apperr"
)

// RateLimiter allows limit requests per window, counted per authenticated
// principal or per client IP for anonymous callers.
func RateLimiter(limit int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if principal, ok := GetPrincipal(c); ok {
				return "user:" + principal.ID
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apperr.New(apperr.RateLimited, "Too many requests, please try again later.")
		},
	})
}
