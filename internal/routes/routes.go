package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/paytrack/internal/config"
	"github.com/example/paytrack/internal/handlers"
	"github.com/example/paytrack/internal/middleware"
	"github.com/example/paytrack/internal/repository"
	"github.com/example/paytrack/internal/services"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Config    *config.Config
	Store     repository.Store
	Validator services.TokenValidator
	Log       logrus.FieldLogger
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Dependencies) {
	cfg := deps.Config

	paymentService := services.NewPaymentService(deps.Store, services.NewReferenceGenerator(), cfg.DefaultStatusProvider, deps.Log)
	webhookService := services.NewWebhookService(deps.Store, cfg.DefaultWebhookProvider, deps.Log)
	paymentHandler := handlers.NewPaymentHandler(paymentService, webhookService, deps.Log)

	app.Get("/health", handlers.Health)

	api := app.Group("/api")

	// Protected routes
	payments := api.Group("/payments",
		middleware.AuthMiddleware(deps.Validator),
		middleware.RateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
	)
	payments.Post("/", paymentHandler.CreatePayment)
	payments.Get("/", paymentHandler.ListPayments)
	payments.Post("/webhook", paymentHandler.HandleWebhook)
	payments.Get("/:reference", paymentHandler.GetPayment)
	payments.Patch("/:reference/status", paymentHandler.UpdatePaymentStatus)
}
