package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"github.com/example/paytrack/internal/config"
	"github.com/example/paytrack/internal/database"
	"github.com/example/paytrack/internal/handlers"
	"github.com/example/paytrack/internal/logging"
	"github.com/example/paytrack/internal/middleware"
	"github.com/example/paytrack/internal/repository"
	"github.com/example/paytrack/internal/routes"
	"github.com/example/paytrack/internal/services"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	app := fiber.New(fiber.Config{
		AppName:               "Payment Processing Service",
		ErrorHandler:          handlers.ErrorHandler(log),
		DisableStartupMessage: cfg.IsProduction(),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))
	middleware.Harden(app, cfg.IsProduction(), cfg.FrontendURL)

	routes.Register(app, routes.Dependencies{
		Config:    cfg,
		Store:     newStore(cfg, log),
		Validator: newValidator(cfg, log),
		Log:       log,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	log.Infof("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}

func newStore(cfg *config.Config, log *logrus.Logger) repository.Store {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore()
	}
	return repository.NewGormStore(database.Connect(cfg.DatabaseURL, cfg.DBLogLevel, log))
}

func newValidator(cfg *config.Config, log *logrus.Logger) services.TokenValidator {
	if cfg.AuthMode == config.AuthModeJWT {
		return services.NewJWTValidator(cfg.JWTSecret)
	}
	return services.NewAuthClient(cfg.AuthServiceURL, cfg.AuthTimeout, log)
}
