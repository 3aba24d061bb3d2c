package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/mediaflux/mediaflux/pkg/cmd"
	"github.com/mediaflux/mediaflux/pkg/dataplane"
	"github.com/mediaflux/mediaflux/pkg/log"
	"github.com/mediaflux/mediaflux/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "mediaflux-api",
		Usage:                 "Register operations, stages and workflows and manage executions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "queue-url",
				Usage:   "Work queue URL (redis://..., or memory)",
				Value:   "memory",
				Sources: cli.EnvVars("QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:    "engine-url",
				Usage:   "Base URL of the durable-execution engine",
				Sources: cli.EnvVars("ENGINE_URL"),
			},
			&cli.StringFlag{
				Name:    "dataplane-url",
				Usage:   "Base URL of the metadata store",
				Sources: cli.EnvVars("DATAPLANE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := otelhelper.InitTracer(ctx, "mediaflux-api")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			logger.InfoContext(ctx, "Initializing MediaFlux API")

			registry := cmd.NewRegistry(logger)
			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "mediaflux-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			workQueue := cmd.NewQueue(ctx, logger, command.String("queue-url"))
			defer func() {
				if err := workQueue.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close work queue", "error", err)
				}
			}()

			eng := cmd.NewEngine(command.String("engine-url"), logger)

			var metadata dataplane.Client
			if dataplaneURL := command.String("dataplane-url"); dataplaneURL != "" {
				metadata = dataplane.NewHTTPClient(dataplaneURL, logger)
			}

			api := NewAPI(
				logger,
				persistence,
				registry,
				eventBus,
				workQueue,
				eng,
				metadata,
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
