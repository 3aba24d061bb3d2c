package file

import (
	"context"

	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

const (
	kindOperations = "operations"
	kindStages     = "stages"
	kindWorkflows  = "workflows"
)

// OperationRepository stores operations as JSON files keyed by name.
type OperationRepository struct {
	p *Persistence
}

func (r *OperationRepository) Save(_ context.Context, op *models.Operation) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if r.p.exists(kindOperations, op.Name) {
		return persistence.NewStoreError("SaveOperation", op.Name, persistence.ErrOperationAlreadyExists)
	}

	return r.p.write(kindOperations, op.Name, op)
}

func (r *OperationRepository) GetByName(_ context.Context, name string) (*models.Operation, error) {
	var op models.Operation

	found, err := r.p.read(kindOperations, name, &op)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetOperation", name, persistence.ErrOperationNotFound)
	}

	return &op, nil
}

func (r *OperationRepository) GetAll(_ context.Context) ([]*models.Operation, error) {
	operations := make([]*models.Operation, 0)

	err := readAll(r.p, kindOperations, func(path string) error {
		var op models.Operation
		if err := decodeFile(path, &op); err != nil {
			return err
		}

		operations = append(operations, &op)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return operations, nil
}

func (r *OperationRepository) Delete(_ context.Context, name string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	removed, err := r.p.remove(kindOperations, name)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewStoreError("DeleteOperation", name, persistence.ErrOperationNotFound)
	}

	return nil
}

// StageRepository stores stages as JSON files keyed by name.
type StageRepository struct {
	p *Persistence
}

func (r *StageRepository) Save(_ context.Context, stage *models.Stage) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if r.p.exists(kindStages, stage.Name) {
		return persistence.NewStoreError("SaveStage", stage.Name, persistence.ErrStageAlreadyExists)
	}

	return r.p.write(kindStages, stage.Name, stage)
}

func (r *StageRepository) GetByName(_ context.Context, name string) (*models.Stage, error) {
	var stage models.Stage

	found, err := r.p.read(kindStages, name, &stage)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetStage", name, persistence.ErrStageNotFound)
	}

	return &stage, nil
}

func (r *StageRepository) GetAll(_ context.Context) ([]*models.Stage, error) {
	stages := make([]*models.Stage, 0)

	err := readAll(r.p, kindStages, func(path string) error {
		var stage models.Stage
		if err := decodeFile(path, &stage); err != nil {
			return err
		}

		stages = append(stages, &stage)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return stages, nil
}

func (r *StageRepository) Delete(_ context.Context, name string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	removed, err := r.p.remove(kindStages, name)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewStoreError("DeleteStage", name, persistence.ErrStageNotFound)
	}

	return nil
}

// WorkflowRepository stores workflows as JSON files keyed by name. The
// reverse-dependency queries scan every stored workflow and filter on the
// denormalized Operations list and the Stages map.
type WorkflowRepository struct {
	p *Persistence
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if r.p.exists(kindWorkflows, workflow.Name) {
		return persistence.NewStoreError("SaveWorkflow", workflow.Name, persistence.ErrWorkflowAlreadyExists)
	}

	return r.p.write(kindWorkflows, workflow.Name, workflow)
}

func (r *WorkflowRepository) Update(_ context.Context, workflow *models.Workflow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if !r.p.exists(kindWorkflows, workflow.Name) {
		return persistence.NewStoreError("UpdateWorkflow", workflow.Name, persistence.ErrWorkflowNotFound)
	}

	return r.p.write(kindWorkflows, workflow.Name, workflow)
}

func (r *WorkflowRepository) GetByName(_ context.Context, name string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := r.p.read(kindWorkflows, name, &workflow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetWorkflow", name, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0)

	err := readAll(r.p, kindWorkflows, func(path string) error {
		var workflow models.Workflow
		if err := decodeFile(path, &workflow); err != nil {
			return err
		}

		workflows = append(workflows, &workflow)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return workflows, nil
}

func (r *WorkflowRepository) Delete(_ context.Context, name string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	removed, err := r.p.remove(kindWorkflows, name)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewStoreError("DeleteWorkflow", name, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) ListByOperation(ctx context.Context, operationName string) ([]*models.Workflow, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0)

	for _, workflow := range all {
		for _, op := range workflow.Operations {
			if op == operationName {
				matches = append(matches, workflow)

				break
			}
		}
	}

	return matches, nil
}

func (r *WorkflowRepository) ListByStage(ctx context.Context, stageName string) ([]*models.Workflow, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if _, ok := workflow.Stages[stageName]; ok {
			matches = append(matches, workflow)
		}
	}

	return matches, nil
}
