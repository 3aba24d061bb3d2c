package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mediaflux/mediaflux/pkg/eventbus"
	"github.com/mediaflux/mediaflux/pkg/events"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
	"github.com/mediaflux/mediaflux/pkg/queue"
)

// Execution creates and resumes workflow executions. Creation enqueues a
// snapshot onto the work queue and fires the queued event that wakes the
// admission scheduler; the scheduler owns the queued-to-started transition.
type Execution struct {
	persistence persistence.Persistence
	queue       queue.Queue
	eventBus    eventbus.EventBus
	logger      *slog.Logger
}

func NewExecution(p persistence.Persistence, q queue.Queue, bus eventbus.EventBus, logger *slog.Logger) *Execution {
	return &Execution{
		persistence: p,
		queue:       q,
		eventBus:    bus,
		logger:      logger.With("module", "execution_service"),
	}
}

// Start creates a queued execution of the named workflow for an asset. The
// execution freezes a deep snapshot of the workflow definition; later edits
// to the stored workflow do not affect it.
func (s *Execution) Start(ctx context.Context, workflowName, assetID string) (*models.WorkflowExecution, error) {
	if assetID == "" {
		return nil, NewValidationError("StartExecution", "asset_id is required", ErrInvalidRequest)
	}

	workflow, err := s.persistence.Workflows().GetByName(ctx, workflowName)
	if err != nil {
		return nil, err
	}

	execution := &models.WorkflowExecution{
		ID:           uuid.New().String(),
		AssetID:      assetID,
		CurrentStage: workflow.StartAt,
		Status:       models.ExecutionStatusQueued,
		Workflow:     snapshotWorkflow(workflow),
		Globals: models.Globals{
			Media:    make(map[string]models.MediaPointer),
			MetaData: make(map[string]any),
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.persistence.Executions().Save(ctx, execution); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, execution); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Queued workflow execution",
		"execution_id", execution.ID, "workflow", workflowName, "asset_id", assetID)

	return execution, nil
}

// Resume re-enqueues a waiting execution. The admission scheduler recognizes
// the resumed status and skips starting a second engine instance; the
// already-running instance un-pauses itself.
func (s *Execution) Resume(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	execution, err := s.persistence.Executions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusWaiting {
		return nil, NewValidationError("ResumeExecution",
			fmt.Sprintf("execution %s is %s, not waiting", id, execution.Status), ErrInvalidRequest)
	}

	execution.Status = models.ExecutionStatusResumed

	if err := s.persistence.Executions().Save(ctx, execution); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, execution); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Resumed workflow execution", "execution_id", id)

	return execution, nil
}

func (s *Execution) Get(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return s.persistence.Executions().GetByID(ctx, id)
}

func (s *Execution) List(ctx context.Context) ([]*models.WorkflowExecution, error) {
	return s.persistence.Executions().GetAll(ctx)
}

// enqueue writes the execution snapshot onto the work queue and fires the
// queued event, which doubles as the scheduler wake signal.
func (s *Execution) enqueue(ctx context.Context, execution *models.WorkflowExecution) error {
	payload, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution snapshot: %w", err)
	}

	if err := s.queue.Enqueue(ctx, payload); err != nil {
		return err
	}

	event := events.ExecutionQueued{
		BaseEvent:    events.NewBaseEvent(events.ExecutionQueuedEvent),
		ExecutionID:  execution.ID,
		WorkflowName: execution.Workflow.Name,
		AssetID:      execution.AssetID,
	}

	if err := s.eventBus.Publish(ctx, execution.ID, event); err != nil {
		// The scheduler's periodic tick still admits the execution; losing
		// the wake only costs latency.
		s.logger.ErrorContext(ctx, "Failed to publish queued event",
			"execution_id", execution.ID, "error", err)
	}

	return nil
}

// snapshotWorkflow deep-copies the parts of a workflow definition an
// execution needs, with empty runtime slots per stage and the first stage's
// input seeded empty.
func snapshotWorkflow(workflow *models.Workflow) *models.WorkflowSnapshot {
	stages := make(map[string]models.StageRef, len(workflow.Stages))
	runtime := make(map[string]models.StageExecution, len(workflow.Stages))

	for name, ref := range workflow.Stages {
		copied := models.StageRef{End: ref.End}
		if ref.Next != nil {
			next := *ref.Next
			copied.Next = &next
		}

		stages[name] = copied
		runtime[name] = models.StageExecution{}
	}

	runtime[workflow.StartAt] = models.StageExecution{
		Input: &models.StageInput{
			Media:    make(map[string]models.MediaPointer),
			MetaData: make(map[string]any),
		},
	}

	return &models.WorkflowSnapshot{
		Name:             workflow.Name,
		ExecutableHandle: workflow.ExecutableHandle,
		StartAt:          workflow.StartAt,
		Stages:           stages,
		Runtime:          runtime,
	}
}
