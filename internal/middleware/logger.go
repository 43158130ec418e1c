package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one access line per request. Errors are rendered by
// the app's error handler first so the logged status is the one sent.
func RequestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		fields := logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.IP(),
		}
		if requestID, ok := c.Locals("requestid").(string); ok {
			fields["request_id"] = requestID
		}
		if principal, ok := GetPrincipal(c); ok {
			fields["user_id"] = principal.ID
		}
		log.WithFields(fields).Info("request")
		return nil
	}
}
