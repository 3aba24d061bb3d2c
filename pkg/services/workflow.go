package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mediaflux/mediaflux/pkg/compiler"
	"github.com/mediaflux/mediaflux/pkg/engine"
	"github.com/mediaflux/mediaflux/pkg/graph"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

// Workflow registers, updates and deletes workflows. Compilation always
// reads the current stored stage definitions, so updating a workflow picks
// up edits to shared stages; registered graphs live on the engine side
// behind ExecutableHandle.
type Workflow struct {
	persistence persistence.Persistence
	engine      engine.Engine
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewWorkflow(p persistence.Persistence, eng engine.Engine, validate *validator.Validate, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: p,
		engine:      eng,
		validate:    validate,
		logger:      logger.With("module", "workflow_service"),
	}
}

func (s *Workflow) compile(ctx context.Context, workflow *models.Workflow) (*graph.StateMachine, error) {
	compiled, err := compiler.CompileWorkflow(workflow, func(name string) (*graph.StateMachine, error) {
		stage, err := s.persistence.Stages().GetByName(ctx, name)
		if err != nil {
			return nil, err
		}

		return stage.Graph, nil
	})
	if err != nil {
		return nil, err
	}

	stages := make(map[string]*models.Stage, len(workflow.Stages))

	for stageName := range workflow.Stages {
		stage, err := s.persistence.Stages().GetByName(ctx, stageName)
		if err != nil {
			return nil, err
		}

		stages[stageName] = stage
	}

	workflow.Operations = compiler.FlattenOperations(workflow.StageOrder(), stages)

	return compiled, nil
}

// Register compiles and persists a workflow and registers its graph with the
// engine. A failed persist compensates by deleting the engine registration.
func (s *Workflow) Register(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := s.validate.Struct(workflow); err != nil {
		return nil, NewValidationError("RegisterWorkflow", err.Error(), ErrInvalidRequest)
	}

	compiled, err := s.compile(ctx, workflow)
	if err != nil {
		return nil, err
	}

	handle, err := s.engine.CompileAndRegister(ctx, workflow.Name, compiled)
	if err != nil {
		return nil, err
	}

	workflow.ID = uuid.New().String()
	workflow.ExecutableHandle = handle
	workflow.Revisions = 0
	workflow.Version = 1
	workflow.CreatedAt = time.Now().UTC()

	if workflow.Trigger == "" {
		workflow.Trigger = models.WorkflowTriggerAPI
	}

	if err := s.persistence.Workflows().Save(ctx, workflow); err != nil {
		if deleteErr := s.engine.DeleteInstance(ctx, handle); deleteErr != nil {
			s.logger.ErrorContext(ctx, "Failed to roll back engine registration",
				"workflow", workflow.Name, "error", deleteErr)
		}

		return nil, err
	}

	s.logger.InfoContext(ctx, "Registered workflow", "workflow", workflow.Name, "stages", len(workflow.Stages))

	return workflow, nil
}

// Update re-compiles the workflow against the current stored stage
// definitions and replaces the engine-side graph. A successful re-compile
// proves every reference resolves again, so stale markers are cleared.
func (s *Workflow) Update(ctx context.Context, name string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := s.persistence.Workflows().GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	workflow.Name = name

	if err := s.validate.Struct(workflow); err != nil {
		return nil, NewValidationError("UpdateWorkflow", err.Error(), ErrInvalidRequest)
	}

	compiled, err := s.compile(ctx, workflow)
	if err != nil {
		return nil, err
	}

	if err := s.engine.UpdateDefinition(ctx, existing.ExecutableHandle, compiled); err != nil {
		return nil, err
	}

	workflow.ID = existing.ID
	workflow.ExecutableHandle = existing.ExecutableHandle
	workflow.Revisions = existing.Revisions + 1
	workflow.Version = existing.Version + 1
	workflow.CreatedAt = existing.CreatedAt
	workflow.StaleOperations = nil
	workflow.StaleStages = nil

	if workflow.Trigger == "" {
		workflow.Trigger = existing.Trigger
	}

	if err := s.persistence.Workflows().Update(ctx, workflow); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Updated workflow", "workflow", name, "revision", workflow.Revisions)

	return workflow, nil
}

func (s *Workflow) Get(ctx context.Context, name string) (*models.Workflow, error) {
	return s.persistence.Workflows().GetByName(ctx, name)
}

func (s *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.persistence.Workflows().GetAll(ctx)
}

// Delete removes the workflow and its engine-side executable. The engine
// delete is best-effort; a dangling executable is harmless and reaped by
// operators.
func (s *Workflow) Delete(ctx context.Context, name string) error {
	workflow, err := s.persistence.Workflows().GetByName(ctx, name)
	if err != nil {
		return err
	}

	if workflow.ExecutableHandle != "" {
		if err := s.engine.DeleteInstance(ctx, workflow.ExecutableHandle); err != nil {
			s.logger.ErrorContext(ctx, "Failed to delete engine executable",
				"workflow", name, "handle", workflow.ExecutableHandle, "error", err)
		}
	}

	return s.persistence.Workflows().Delete(ctx, name)
}
