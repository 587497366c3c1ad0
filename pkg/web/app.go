package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp mounts every route of the API.
func NewApp(handlers *APIHandlers, urlTriggers *URLTriggerHandlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Minus API")
	})

	d := app.Group("/definitions")
	d.Get("/", handlers.ListDefinitions)
	d.Get("/:id", handlers.GetDefinition)
	d.Post("/:id/instantiate", handlers.InstantiateDefinition)
	d.Post("/:id/validate", handlers.ValidateNode)

	w := app.Group("/workflows")
	w.Get("/:id/triggers", handlers.ListTriggers)
	w.Post("/:id/triggers", handlers.CreateTrigger)
	w.Get("/:id/runs", handlers.ListRuns)
	w.Post("/:id/runs", handlers.StartRun)

	t := app.Group("/triggers")
	t.Get("/:id", handlers.GetTrigger)
	t.Put("/:id", handlers.UpdateTrigger)
	t.Delete("/:id", handlers.DeleteTrigger)

	r := app.Group("/runs")
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/report", handlers.ReportRun)
	r.Post("/:id/cancel", handlers.CancelRun)

	u := app.Group("/url-triggers")
	u.All("/async", urlTriggers.Async)
	u.All("/sync", urlTriggers.Sync)

	app.Get("/health", handlers.HealthCheck)

	return app
}
