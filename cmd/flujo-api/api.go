// Package main provides the flujo API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/flujo/pkg/objectstore"
	"github.com/dukex/flujo/pkg/persistence"
	"github.com/dukex/flujo/pkg/services"
	"github.com/dukex/flujo/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger     *slog.Logger
	flujos     *services.Flujo
	completion *services.Completion
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	objects objectstore.ObjectStore,
	codec services.TokenCodec,
	opts ...services.Option,
) *API {
	opts = append([]services.Option{services.WithLogger(logger)}, opts...)
	flujos := services.NewFlujo(persistence, objects, codec, opts...)

	return &API{
		logger:     logger,
		flujos:     flujos,
		completion: services.NewCompletion(flujos),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.flujos, a.completion)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := a.flujos.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flujo API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Starting flujo API", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
