// Package scheduler admits queued executions onto the durable-execution
// engine while holding the number of concurrently running workflows under
// the configured cap.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mediaflux/mediaflux/pkg/engine"
	"github.com/mediaflux/mediaflux/pkg/eventbus"
	"github.com/mediaflux/mediaflux/pkg/events"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/otelhelper"
	"github.com/mediaflux/mediaflux/pkg/persistence"
	"github.com/mediaflux/mediaflux/pkg/queue"
	"github.com/mediaflux/mediaflux/pkg/services"
)

// TickSchedule is the fallback admission cadence. Event wakes normally beat
// the tick; the tick only covers lost wake signals.
const TickSchedule = "@every 30s"

// Scheduler runs admission cycles. A cycle reads the concurrency cap and the
// running count, receives up to the spare capacity from the work queue,
// claims each message by deleting it and starts an engine instance for it.
// Cycles are serialized; concurrent wake signals coalesce into waiting once.
type Scheduler struct {
	persistence persistence.Persistence
	queue       queue.Queue
	engine      engine.Engine
	config      *services.Config
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	tracer      trace.Tracer

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(
	p persistence.Persistence,
	q queue.Queue,
	eng engine.Engine,
	config *services.Config,
	bus eventbus.EventBus,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		persistence: p,
		queue:       q,
		engine:      eng,
		config:      config,
		eventBus:    bus,
		logger:      logger.With("module", "scheduler"),
		tracer:      otel.Tracer("mediaflux/scheduler"),
	}
}

// Start registers the wake-event handlers and the periodic tick. The caller
// owns the event bus subscription; Start only attaches handlers to it.
func (s *Scheduler) Start(ctx context.Context) error {
	wake := func(ctx context.Context, _ interface{}) error {
		s.RunCycle(ctx)

		return nil
	}

	for _, eventType := range []events.EventType{
		events.ExecutionQueuedEvent,
		events.ExecutionCompletedEvent,
		events.ExecutionFailedEvent,
		events.SchedulerWakeEventType,
	} {
		if err := s.eventBus.Handle(eventType, wake); err != nil {
			return err
		}
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := s.cron.AddFunc(TickSchedule, func() {
		s.RunCycle(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started", "tick", TickSchedule)

	return nil
}

func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	s.logger.InfoContext(ctx, "Scheduler stopped")
}

// RunCycle performs one admission cycle. Capacity is re-computed after every
// admitted batch, so a cap above the queue's receive ceiling still fills in
// one cycle. Errors are logged, not returned; the next wake or tick retries
// naturally.
func (s *Scheduler) RunCycle(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.run_cycle")
	defer span.End()

	for {
		capacity, err := s.capacity(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to compute admission capacity", "error", err)
			otelhelper.SetError(span, err)

			return
		}

		if capacity <= 0 {
			return
		}

		messages, err := s.queue.Receive(ctx, capacity)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to receive from work queue", "error", err)
			otelhelper.SetError(span, err)

			return
		}

		if len(messages) == 0 {
			return
		}

		for _, msg := range messages {
			s.admit(ctx, msg)
		}
	}
}

// capacity is the number of executions the cycle may admit: the configured
// cap minus the running count, clamped to the queue's receive ceiling. The
// running count may lag recent commits; transient over-admission is accepted.
func (s *Scheduler) capacity(ctx context.Context) (int, error) {
	maxConcurrent, err := s.config.MaxConcurrentWorkflows(ctx)
	if err != nil {
		return 0, err
	}

	running, err := s.persistence.Executions().CountByStatus(ctx, models.ExecutionStatusStarted)
	if err != nil {
		return 0, err
	}

	capacity := maxConcurrent - running
	if capacity > queue.MaxReceiveBatch {
		capacity = queue.MaxReceiveBatch
	}

	return capacity, nil
}

// admit claims one queue message and starts its execution. The delete IS the
// claim: once it succeeds no other scheduler instance sees the message, and a
// crash between delete and start loses the admission (the execution stays
// queued until an operator re-enqueues it).
func (s *Scheduler) admit(ctx context.Context, msg queue.Message) {
	var snapshot models.WorkflowExecution
	if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
		s.logger.ErrorContext(ctx, "Discarding undecodable queue message", "error", err)

		if err := s.queue.Delete(ctx, msg); err != nil {
			s.logger.ErrorContext(ctx, "Failed to delete poison message", "error", err)
		}

		return
	}

	logger := s.logger.With("execution_id", snapshot.ID)

	workflowName := ""
	if snapshot.Workflow != nil {
		workflowName = snapshot.Workflow.Name
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.admit",
		attribute.String(otelhelper.ExecutionIDKey, snapshot.ID),
		attribute.String(otelhelper.AssetIDKey, snapshot.AssetID),
		attribute.String(otelhelper.WorkflowNameKey, workflowName),
	)
	defer span.End()

	if err := s.queue.Delete(ctx, msg); err != nil {
		// Claim lost; another instance owns the message.
		logger.WarnContext(ctx, "Failed to claim queue message", "error", err)

		return
	}

	execution, err := s.persistence.Executions().GetByID(ctx, snapshot.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Claimed execution has no stored record", "error", err)

		return
	}

	if execution.Status.IsTerminal() || execution.Status == models.ExecutionStatusStarted {
		logger.InfoContext(ctx, "Skipping already-settled execution", "status", execution.Status)

		return
	}

	prior := execution.Status

	if err := s.persistence.Executions().UpdateStatus(ctx, execution.ID, models.ExecutionStatusStarted, ""); err != nil {
		logger.ErrorContext(ctx, "Failed to mark execution started", "error", err)

		return
	}

	// A resumed execution already has a live engine instance; admitting it
	// only releases it from the queue.
	if prior == models.ExecutionStatusResumed {
		logger.InfoContext(ctx, "Re-admitted resumed execution")

		return
	}

	ref, err := s.engine.StartInstance(ctx, execution.Workflow.ExecutableHandle, execution.ID, startInput(execution))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start engine instance", "error", err)
		otelhelper.SetError(span, err)

		if statusErr := s.persistence.Executions().UpdateStatus(ctx,
			execution.ID, models.ExecutionStatusError, err.Error()); statusErr != nil {
			logger.ErrorContext(ctx, "Failed to mark execution errored", "error", statusErr)
		}

		return
	}

	execution.Status = models.ExecutionStatusStarted
	execution.EngineExecutionRef = ref

	if err := s.persistence.Executions().Save(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist engine execution ref", "error", err)
	}

	event := events.ExecutionStarted{
		BaseEvent:          events.NewBaseEvent(events.ExecutionStartedEvent),
		ExecutionID:        execution.ID,
		EngineExecutionRef: ref,
	}

	if err := s.eventBus.Publish(ctx, execution.ID, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish started event", "error", err)
	}

	logger.InfoContext(ctx, "Admitted execution", "engine_execution_ref", ref)
}

// startInput is the initial payload of an engine instance: the execution
// identity plus the current stage's seeded input.
func startInput(execution *models.WorkflowExecution) map[string]any {
	input := map[string]any{
		"execution_id": execution.ID,
		"asset_id":     execution.AssetID,
	}

	if slot, ok := execution.Workflow.Runtime[execution.CurrentStage]; ok && slot.Input != nil {
		input["media"] = slot.Input.Media
		input["metadata"] = slot.Input.MetaData
	}

	return input
}
