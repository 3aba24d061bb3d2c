// Package main provides the MediaFlux controller: the admission scheduler
// plus the stage-completion and engine-failure consumers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/mediaflux/mediaflux/pkg/cmd"
	"github.com/mediaflux/mediaflux/pkg/completion"
	"github.com/mediaflux/mediaflux/pkg/events"
	"github.com/mediaflux/mediaflux/pkg/log"
	"github.com/mediaflux/mediaflux/pkg/otelhelper"
	"github.com/mediaflux/mediaflux/pkg/scheduler"
	"github.com/mediaflux/mediaflux/pkg/services"
)

func main() {
	logger := log.WithModule("controller")

	command := &cli.Command{
		Name:                  "mediaflux-controller",
		Usage:                 "Admit queued executions and reconcile settled stages",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := otelhelper.InitTracer(ctx, "mediaflux-controller")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			logger.InfoContext(ctx, "Initializing MediaFlux Controller")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "mediaflux-controller", logger)
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

			configService := services.NewConfig(persistence, logger)
			completionHandler := completion.NewHandler(persistence, eng, eventBus, logger)
			admission := scheduler.NewScheduler(persistence, workQueue, eng, configService, eventBus, logger)

			if err := eventBus.Handle(events.StageCompleteEventType, func(ctx context.Context, event interface{}) error {
				stageEvent, ok := event.(*events.StageComplete)
				if !ok {
					return fmt.Errorf("unexpected payload for stage completion event")
				}

				return completionHandler.CompleteStage(ctx,
					stageEvent.ExecutionID, stageEvent.StageName, stageEvent.Status, stageEvent.Outputs)
			}); err != nil {
				return err
			}

			if err := eventBus.Handle(events.EngineFailureEventType, func(ctx context.Context, event interface{}) error {
				failureEvent, ok := event.(*events.EngineFailure)
				if !ok {
					return fmt.Errorf("unexpected payload for engine failure event")
				}

				return completionHandler.HandleEngineFailure(ctx, *failureEvent)
			}); err != nil {
				return err
			}

			if err := admission.Start(ctx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return fmt.Errorf("failed to subscribe to event bus: %w", err)
			}

			logger.InfoContext(ctx, "MediaFlux Controller started")

			signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			<-signalCtx.Done()

			admission.Stop(ctx)
			logger.InfoContext(ctx, "MediaFlux Controller stopped")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
