package handlers

import "github.com/gofiber/fiber/v2"

// Health reports that the process is serving requests.
func Health(c *fiber.Ctx) error {
	return c.JSON(envelope{Success: true, Message: "OK"})
}
