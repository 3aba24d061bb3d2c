package completion

import (
	"context"
	"fmt"

	"github.com/mediaflux/mediaflux/pkg/engine"
	"github.com/mediaflux/mediaflux/pkg/events"
	"github.com/mediaflux/mediaflux/pkg/models"
)

// failureHistoryPageSize bounds how much history is fetched when digging for
// a root cause.
const failureHistoryPageSize = 100

// HandleEngineFailure consumes a failure-escalation event for an engine
// execution that died outside the stage-completion path. It digs the
// earliest failure out of the engine history and marks the owning execution
// errored with that message.
func (h *Handler) HandleEngineFailure(ctx context.Context, event events.EngineFailure) error {
	execution, err := h.findByEngineRef(ctx, event.ExecutionRef)
	if err != nil {
		return err
	}

	message := h.rootCause(ctx, event)

	execution.CurrentStage = models.EndStage
	execution.Status = models.ExecutionStatusError
	execution.Message = message

	if err := h.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist failed execution %s: %w", execution.ID, err)
	}

	if err := h.UpdateExecutionStatus(ctx, execution.ID, models.ExecutionStatusError, message); err != nil {
		return err
	}

	h.logger.ErrorContext(ctx, "Engine execution failed",
		"execution_id", execution.ID, "engine_execution_ref", event.ExecutionRef,
		"engine_status", event.Status, "message", message)

	return nil
}

// rootCause pulls the chronologically earliest failure event from the engine
// history. History arrives newest first, so the last failure entry in the
// page is the root cause; the escalation status is the fallback when history
// is unavailable or clean.
func (h *Handler) rootCause(ctx context.Context, event events.EngineFailure) string {
	history, err := h.engine.GetHistory(ctx, event.ExecutionRef, failureHistoryPageSize, true)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to fetch engine history",
			"engine_execution_ref", event.ExecutionRef, "error", err)

		return fmt.Sprintf("engine execution ended with status %s", event.Status)
	}

	var earliest *engine.HistoryEvent

	for i := range history {
		switch history[i].Kind {
		case engine.HistoryEventFailed, engine.HistoryEventAborted, engine.HistoryEventTimedOut:
			earliest = &history[i]
		}
	}

	if earliest == nil {
		return fmt.Sprintf("engine execution ended with status %s", event.Status)
	}

	if earliest.Cause != "" {
		return earliest.Cause
	}

	return earliest.Message
}

// findByEngineRef scans the execution table for the record owning an engine
// execution reference. The scan mirrors the reverse-dependency queries on
// workflows; executions carry no secondary index on the ref.
func (h *Handler) findByEngineRef(ctx context.Context, ref string) (*models.WorkflowExecution, error) {
	executions, err := h.persistence.Executions().GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, execution := range executions {
		if execution.EngineExecutionRef == ref {
			return execution, nil
		}
	}

	return nil, fmt.Errorf("no execution owns engine ref %s", ref)
}
