package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mediaflux/mediaflux/pkg/compiler"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

// Stage registers and deletes stages.
type Stage struct {
	persistence persistence.Persistence
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewStage(p persistence.Persistence, validate *validator.Validate, logger *slog.Logger) *Stage {
	return &Stage{
		persistence: p,
		validate:    validate,
		logger:      logger.With("module", "stage_service"),
	}
}

// Register validates the member operations, compiles the parallel graph and
// persists the stage. Member configurations are denormalized into the stage
// at compile time.
func (s *Stage) Register(ctx context.Context, stage *models.Stage) (*models.Stage, error) {
	if err := s.validate.Struct(stage); err != nil {
		return nil, NewValidationError("RegisterStage", err.Error(), ErrInvalidRequest)
	}

	stageGraph, err := compiler.CompileStage(stage, func(name string) (*models.Operation, error) {
		return s.persistence.Operations().GetByName(ctx, name)
	})
	if err != nil {
		return nil, err
	}

	stage.ID = uuid.New().String()
	stage.Graph = stageGraph
	stage.Version = 1
	stage.CreatedAt = time.Now().UTC()

	if err := s.persistence.Stages().Save(ctx, stage); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Registered stage", "stage", stage.Name, "operations", len(stage.Operations))

	return stage, nil
}

func (s *Stage) Get(ctx context.Context, name string) (*models.Stage, error) {
	return s.persistence.Stages().GetByName(ctx, name)
}

func (s *Stage) List(ctx context.Context) ([]*models.Stage, error) {
	return s.persistence.Stages().GetAll(ctx)
}

// Delete removes a stage. Referenced stages are guarded the same way as
// operations: refuse while dependents exist unless force, in which case the
// dependents gain the stage in StaleStages. Deleting never re-compiles a
// dependent's graph; the marker is advisory.
func (s *Stage) Delete(ctx context.Context, name string, force bool) error {
	if _, err := s.persistence.Stages().GetByName(ctx, name); err != nil {
		return err
	}

	dependents, err := s.persistence.Workflows().ListByStage(ctx, name)
	if err != nil {
		return err
	}

	if len(dependents) > 0 {
		if !force {
			return NewValidationError("DeleteStage",
				fmt.Sprintf("stage %s is used by workflows: %s", name, workflowNames(dependents)),
				ErrDependentWorkflows)
		}

		for _, workflow := range dependents {
			if !contains(workflow.StaleStages, name) {
				workflow.StaleStages = append(workflow.StaleStages, name)
			}

			if err := s.persistence.Workflows().Update(ctx, workflow); err != nil {
				return err
			}
		}
	}

	if err := s.persistence.Stages().Delete(ctx, name); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Deleted stage", "stage", name, "force", force)

	return nil
}
