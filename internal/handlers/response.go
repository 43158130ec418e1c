package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/paytrack/internal/apperr"
)

// envelope is the shape of every response body.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(envelope{Success: true, Message: message, Data: data})
}

// ErrorHandler renders any error returned by a handler or middleware as an
// envelope. Only the public message leaves the process; the cause is logged.
func ErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := apperr.Status(err)
		message := apperr.PublicMessage(err)
		var fields map[string]string

		var fe *fiber.Error
		if ae, ok := apperr.As(err); ok {
			fields = ae.Fields
		} else if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
			if status >= fiber.StatusInternalServerError {
				message = apperr.GenericMessage
			}
		}

		entry := log.WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"status": status,
		}).WithError(err)
		if requestID, ok := c.Locals("requestid").(string); ok {
			entry = entry.WithField("request_id", requestID)
		}
		if status >= fiber.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Warn("request rejected")
		}

		return c.Status(status).JSON(envelope{Success: false, Message: message, Errors: fields})
	}
}
