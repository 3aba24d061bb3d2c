// Package main provides the MediaFlux API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/mediaflux/mediaflux/pkg/dataplane"
	"github.com/mediaflux/mediaflux/pkg/engine"
	"github.com/mediaflux/mediaflux/pkg/eventbus"
	"github.com/mediaflux/mediaflux/pkg/persistence"
	"github.com/mediaflux/mediaflux/pkg/queue"
	"github.com/mediaflux/mediaflux/pkg/registry"
	"github.com/mediaflux/mediaflux/pkg/services"
	"github.com/mediaflux/mediaflux/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	queue       queue.Queue
	engine      engine.Engine
	metadata    dataplane.Client
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	q queue.Queue,
	eng engine.Engine,
	metadata dataplane.Client,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		registry:    reg,
		eventBus:    eventBus,
		queue:       q,
		engine:      eng,
		metadata:    metadata,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	operationService := services.NewOperation(a.persistence, a.registry, a.validate, a.logger)
	stageService := services.NewStage(a.persistence, a.validate, a.logger)
	workflowService := services.NewWorkflow(a.persistence, a.engine, a.validate, a.logger)
	executionService := services.NewExecution(a.persistence, a.queue, a.eventBus, a.logger)
	configService := services.NewConfig(a.persistence, a.logger)
	locks := dataplane.NewLocks(a.persistence, a.logger)

	handlers := web.NewAPIHandlers(
		operationService,
		stageService,
		workflowService,
		executionService,
		configService,
		locks,
		a.metadata,
		a.registry,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("MediaFlux API")
	})

	o := app.Group("/operations")
	o.Get("/", handlers.GetOperations)
	o.Post("/", handlers.CreateOperation)
	o.Get("/:name", handlers.GetOperation)
	o.Delete("/:name", handlers.DeleteOperation)

	s := app.Group("/stages")
	s.Get("/", handlers.GetStages)
	s.Post("/", handlers.CreateStage)
	s.Get("/:name", handlers.GetStage)
	s.Delete("/:name", handlers.DeleteStage)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:name", handlers.GetWorkflow)
	w.Patch("/:name", handlers.UpdateWorkflow)
	w.Delete("/:name", handlers.DeleteWorkflow)
	w.Post("/:name/executions", handlers.CreateExecution)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/resume", handlers.ResumeExecution)

	app.Get("/config/:key", handlers.GetConfig)
	app.Put("/config/:key", handlers.SetConfig)

	assets := app.Group("/assets")
	assets.Post("/:id/checkout", handlers.CheckoutAsset)
	assets.Post("/:id/checkin", handlers.CheckinAsset)
	assets.Get("/:id/lock", handlers.GetAssetLock)
	assets.Get("/:id/metadata/:operator", handlers.GetAssetMetadata)

	app.Get("/handlers", handlers.GetHandlers)
	app.Post("/handlers", handlers.RegisterHandler)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
