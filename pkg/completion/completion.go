// Package completion reconciles settled stages into their owning execution:
// it rolls branch outputs up into the execution-wide globals, advances the
// current stage and detects terminal states.
package completion

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mediaflux/mediaflux/pkg/engine"
	"github.com/mediaflux/mediaflux/pkg/eventbus"
	"github.com/mediaflux/mediaflux/pkg/events"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/otelhelper"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

// ErrMediaCollision marks two operations of one stage emitting the same
// media-type key. Cross-stage overwrites are legal; same-stage duplicates
// mean a naming collision in the stage definition and fail the stage.
var ErrMediaCollision = fmt.Errorf("duplicate media type within stage")

// Handler processes stage-completion callbacks from the engine. The engine
// invokes it exactly once per stage per execution; invocations for different
// executions may run concurrently since each touches only its own record.
type Handler struct {
	persistence persistence.Persistence
	engine      engine.Engine
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewHandler(p persistence.Persistence, eng engine.Engine, bus eventbus.EventBus, logger *slog.Logger) *Handler {
	return &Handler{
		persistence: p,
		engine:      eng,
		eventBus:    bus,
		logger:      logger.With("module", "completion"),
		tracer:      otel.Tracer("mediaflux/completion"),
	}
}

// CompleteStage rolls up a settled stage and advances the execution. Any
// error forces the execution to error status best-effort before returning,
// and a best-effort snapshot write preserves whatever in-memory state the
// roll-up reached.
func (h *Handler) CompleteStage(
	ctx context.Context,
	executionID, stageName string,
	reported models.ExecutionStatus,
	outputs []models.OperationOutput,
) error {
	ctx, span := otelhelper.StartSpan(ctx, h.tracer, "completion.complete_stage",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.StageNameKey, stageName),
	)
	defer span.End()

	execution, err := h.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		err = fmt.Errorf("failed to load execution %s: %w", executionID, err)
		otelhelper.SetError(span, err)

		return err
	}

	outcome := stageOutcome(reported, outputs)

	if err := h.rollUp(execution, outputs); err != nil {
		outcome = models.ExecutionStatusError
		h.fail(ctx, execution, err.Error())
		otelhelper.SetError(span, err)

		return err
	}

	slot := execution.Workflow.Runtime[stageName]
	slot.Status = outcome
	slot.Outputs = outputs
	execution.Workflow.Runtime[stageName] = slot

	if err := h.advance(ctx, execution, stageName, outcome); err != nil {
		h.fail(ctx, execution, err.Error())
		otelhelper.SetError(span, err)

		return err
	}

	h.logger.InfoContext(ctx, "Completed stage",
		"execution_id", executionID, "stage", stageName, "status", outcome)

	return nil
}

// stageOutcome is complete unless any branch settled outside complete or
// skipped. An externally reported error is never downgraded.
func stageOutcome(reported models.ExecutionStatus, outputs []models.OperationOutput) models.ExecutionStatus {
	if reported == models.ExecutionStatusError {
		return models.ExecutionStatusError
	}

	for _, output := range outputs {
		if output.Status != models.OperationStatusComplete && output.Status != models.OperationStatusSkipped {
			return models.ExecutionStatusError
		}
	}

	return models.ExecutionStatusComplete
}

// rollUp merges branch outputs into the execution globals. Media keys
// overwrite earlier stages but may not collide within this one; metadata
// keys are last-writer-wins in output order.
func (h *Handler) rollUp(execution *models.WorkflowExecution, outputs []models.OperationOutput) error {
	if execution.Globals.Media == nil {
		execution.Globals.Media = make(map[string]models.MediaPointer)
	}

	if execution.Globals.MetaData == nil {
		execution.Globals.MetaData = make(map[string]any)
	}

	seen := make(map[string]string)

	for _, output := range outputs {
		for mediaType, pointer := range output.Media {
			if previous, dup := seen[mediaType]; dup {
				return fmt.Errorf("%w: %q emitted by both %s and %s",
					ErrMediaCollision, mediaType, previous, output.Operation)
			}

			seen[mediaType] = output.Operation
			execution.Globals.Media[mediaType] = pointer
		}

		for key, value := range output.MetaData {
			execution.Globals.MetaData[key] = value
		}
	}

	return nil
}

// advance moves the execution past the settled stage: terminal when the
// stage declares End or errored, otherwise the next stage is seeded from the
// current globals and marked started.
func (h *Handler) advance(ctx context.Context, execution *models.WorkflowExecution, stageName string, outcome models.ExecutionStatus) error {
	ref, ok := execution.Workflow.Stages[stageName]
	if !ok {
		return fmt.Errorf("stage %s is not part of execution %s", stageName, execution.ID)
	}

	switch {
	case ref.End:
		execution.CurrentStage = models.EndStage
		execution.Status = outcome

	case outcome == models.ExecutionStatusError:
		// Workflows never continue past a failed stage.
		execution.CurrentStage = models.EndStage
		execution.Status = models.ExecutionStatusError

	default:
		if ref.Next == nil {
			return fmt.Errorf("stage %s has neither Next nor End in execution %s", stageName, execution.ID)
		}

		next := *ref.Next
		slot := execution.Workflow.Runtime[next]
		slot.Status = models.ExecutionStatusStarted
		slot.Input = &models.StageInput{
			Media:    copyMedia(execution.Globals.Media),
			MetaData: copyMetaData(execution.Globals.MetaData),
		}
		execution.Workflow.Runtime[next] = slot

		execution.CurrentStage = next
		execution.Status = models.ExecutionStatusStarted
	}

	if err := h.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist advanced execution %s: %w", execution.ID, err)
	}

	return h.UpdateExecutionStatus(ctx, execution.ID, execution.Status, execution.Message)
}

// UpdateExecutionStatus writes the overall status and, on transitions into
// queued, complete or error, fires the scheduler wake signal. The wake is
// fire-and-forget; losing it only delays the next admission until the tick.
func (h *Handler) UpdateExecutionStatus(ctx context.Context, id string, status models.ExecutionStatus, message string) error {
	if err := h.persistence.Executions().UpdateStatus(ctx, id, status, message); err != nil {
		return err
	}

	var event eventbus.Event

	switch status {
	case models.ExecutionStatusQueued:
		event = events.SchedulerWake{BaseEvent: events.NewBaseEvent(events.SchedulerWakeEventType)}
	case models.ExecutionStatusComplete:
		event = events.ExecutionCompleted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent),
			ExecutionID: id,
		}
	case models.ExecutionStatusError:
		event = events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent),
			ExecutionID: id,
			Error:       message,
		}
	default:
		return nil
	}

	if err := h.eventBus.Publish(ctx, id, event); err != nil {
		h.logger.ErrorContext(ctx, "Failed to publish status event",
			"execution_id", id, "status", status, "error", err)
	}

	return nil
}

// fail forces the execution to error and snapshots the in-memory record so
// partial roll-up state is not silently lost. Both writes are best-effort.
func (h *Handler) fail(ctx context.Context, execution *models.WorkflowExecution, message string) {
	execution.Status = models.ExecutionStatusError
	execution.CurrentStage = models.EndStage
	execution.Message = message

	if err := h.persistence.Executions().Save(ctx, execution); err != nil {
		h.logger.ErrorContext(ctx, "Failed to snapshot failed execution",
			"execution_id", execution.ID, "error", err)
	}

	if err := h.UpdateExecutionStatus(ctx, execution.ID, models.ExecutionStatusError, message); err != nil {
		h.logger.ErrorContext(ctx, "Failed to mark execution errored",
			"execution_id", execution.ID, "error", err)
	}
}

func copyMedia(src map[string]models.MediaPointer) map[string]models.MediaPointer {
	dst := make(map[string]models.MediaPointer, len(src))
	for key, value := range src {
		dst[key] = value
	}

	return dst
}

func copyMetaData(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}

	return dst
}
