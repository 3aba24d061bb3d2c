package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mediaflux/mediaflux/pkg/compiler"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
	"github.com/mediaflux/mediaflux/pkg/registry"
)

// Operation registers and deletes operations. Registration also creates the
// operation's singleton stage; the two records are written one after the
// other with a compensating delete, not a transaction.
type Operation struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewOperation(p persistence.Persistence, reg *registry.Registry, validate *validator.Validate, logger *slog.Logger) *Operation {
	return &Operation{
		persistence: p,
		registry:    reg,
		validate:    validate,
		logger:      logger.With("module", "operation_service"),
	}
}

// Register validates, compiles and persists an operation plus its singleton
// stage. The stage is named "<operation>-stage" and runs the operation as
// its only branch.
func (s *Operation) Register(ctx context.Context, op *models.Operation) (*models.Operation, error) {
	if err := s.validate.Struct(op); err != nil {
		return nil, NewValidationError("RegisterOperation", err.Error(), ErrInvalidRequest)
	}

	if err := s.registry.ValidateConfiguration(op.StartHandler, op.Configuration.Settings); err != nil {
		return nil, NewValidationError("RegisterOperation", err.Error(), ErrInvalidRequest)
	}

	fragment, err := compiler.CompileOperation(op)
	if err != nil {
		return nil, err
	}

	op.ID = uuid.New().String()
	op.Graph = fragment
	op.StageName = op.Name + "-stage"
	op.Version = 1
	op.CreatedAt = time.Now().UTC()

	if err := s.persistence.Operations().Save(ctx, op); err != nil {
		return nil, err
	}

	stage := &models.Stage{
		Name:       op.StageName,
		Operations: []string{op.Name},
	}

	stageGraph, err := compiler.CompileStage(stage, func(string) (*models.Operation, error) {
		return op, nil
	})
	if err == nil {
		stage.ID = uuid.New().String()
		stage.Graph = stageGraph
		stage.Version = 1
		stage.CreatedAt = op.CreatedAt
		err = s.persistence.Stages().Save(ctx, stage)
	}

	if err != nil {
		// Roll the operation back so a failed registration leaves nothing.
		if deleteErr := s.persistence.Operations().Delete(ctx, op.Name); deleteErr != nil {
			s.logger.ErrorContext(ctx, "Failed to roll back operation after stage failure",
				"operation", op.Name, "error", deleteErr)
		}

		return nil, fmt.Errorf("failed to create singleton stage for operation %s: %w", op.Name, err)
	}

	s.logger.InfoContext(ctx, "Registered operation", "operation", op.Name, "type", op.Type)

	return op, nil
}

func (s *Operation) Get(ctx context.Context, name string) (*models.Operation, error) {
	return s.persistence.Operations().GetByName(ctx, name)
}

func (s *Operation) List(ctx context.Context) ([]*models.Operation, error) {
	return s.persistence.Operations().GetAll(ctx)
}

// Delete removes an operation. While compiled workflows reference it the
// call fails with ErrDependentWorkflows naming them, unless force is set, in
// which case each dependent gains the operation in StaleOperations and the
// delete proceeds. The singleton stage goes with the operation.
func (s *Operation) Delete(ctx context.Context, name string, force bool) error {
	op, err := s.persistence.Operations().GetByName(ctx, name)
	if err != nil {
		return err
	}

	dependents, err := s.persistence.Workflows().ListByOperation(ctx, name)
	if err != nil {
		return err
	}

	if len(dependents) > 0 {
		if !force {
			return NewValidationError("DeleteOperation",
				fmt.Sprintf("operation %s is used by workflows: %s", name, workflowNames(dependents)),
				ErrDependentWorkflows)
		}

		for _, workflow := range dependents {
			if !contains(workflow.StaleOperations, name) {
				workflow.StaleOperations = append(workflow.StaleOperations, name)
			}

			if err := s.persistence.Workflows().Update(ctx, workflow); err != nil {
				return err
			}
		}
	}

	if err := s.persistence.Operations().Delete(ctx, name); err != nil {
		return err
	}

	if err := s.persistence.Stages().Delete(ctx, op.StageName); err != nil && !persistence.IsNotFound(err) {
		return err
	}

	s.logger.InfoContext(ctx, "Deleted operation", "operation", name, "force", force)

	return nil
}

func workflowNames(workflows []*models.Workflow) string {
	names := make([]string, len(workflows))
	for i, workflow := range workflows {
		names[i] = workflow.Name
	}

	return strings.Join(names, ", ")
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}

	return false
}
