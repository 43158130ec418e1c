package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
)

const contentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: https:; script-src 'self' 'unsafe-inline'"

// Harden installs CORS and the no-store cache policy. Production also gets
// security headers and gzip.
func Harden(app *fiber.App, production bool, frontendURL string) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:     frontendURL,
		AllowMethods:     "GET,HEAD,PUT,PATCH,POST,DELETE,OPTIONS",
		AllowHeaders:     "Content-Type, Authorization",
		AllowCredentials: true,
	}))

	if production {
		app.Use(helmet.New(helmet.Config{
			ContentSecurityPolicy: contentSecurityPolicy,
			ReferrerPolicy:        "strict-origin-when-cross-origin",
		}))
		app.Use(compress.New())
	}

	app.Use(NoStore())
}

// NoStore forbids caching of every response.
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Next()
	}
}
