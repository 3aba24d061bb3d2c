package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

// insertDocument inserts a named JSONB document; the ON CONFLICT guard makes
// creation conditional so concurrent registrations race safely.
func insertDocument(ctx context.Context, db *sql.DB, table, name string, record any) (bool, error) {
	document, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to marshal %s document: %w", table, err)
	}

	query := fmt.Sprintf("INSERT INTO %s (name, document) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING", table)

	result, err := db.ExecContext(ctx, query, name, document)
	if err != nil {
		return false, fmt.Errorf("failed to insert %s document: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return affected == 1, nil
}

func selectDocument(ctx context.Context, db *sql.DB, table, name string, record any) (bool, error) {
	query := fmt.Sprintf("SELECT document FROM %s WHERE name = $1", table)

	var document []byte

	err := db.QueryRowContext(ctx, query, name).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("failed to query %s document: %w", table, err)
	}

	if err := json.Unmarshal(document, record); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s document: %w", table, err)
	}

	return true, nil
}

func selectDocuments(ctx context.Context, db *sql.DB, query string, decode func([]byte) error, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return fmt.Errorf("failed to scan document: %w", err)
		}

		if err := decode(document); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate documents: %w", err)
	}

	return nil
}

func deleteRow(ctx context.Context, db *sql.DB, table, keyColumn, key string) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, keyColumn)

	result, err := db.ExecContext(ctx, query, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}

	return affected == 1, nil
}

// OperationRepository stores operations in the operations table.
type OperationRepository struct {
	db *sql.DB
}

func (r *OperationRepository) Save(ctx context.Context, op *models.Operation) error {
	created, err := insertDocument(ctx, r.db, "operations", op.Name, op)
	if err != nil {
		return err
	}

	if !created {
		return persistence.NewStoreError("SaveOperation", op.Name, persistence.ErrOperationAlreadyExists)
	}

	return nil
}

func (r *OperationRepository) GetByName(ctx context.Context, name string) (*models.Operation, error) {
	var op models.Operation

	found, err := selectDocument(ctx, r.db, "operations", name, &op)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetOperation", name, persistence.ErrOperationNotFound)
	}

	return &op, nil
}

func (r *OperationRepository) GetAll(ctx context.Context) ([]*models.Operation, error) {
	operations := make([]*models.Operation, 0)

	err := selectDocuments(ctx, r.db, "SELECT document FROM operations ORDER BY name", func(document []byte) error {
		var op models.Operation
		if err := json.Unmarshal(document, &op); err != nil {
			return fmt.Errorf("failed to unmarshal operation: %w", err)
		}

		operations = append(operations, &op)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return operations, nil
}

func (r *OperationRepository) Delete(ctx context.Context, name string) error {
	removed, err := deleteRow(ctx, r.db, "operations", "name", name)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewStoreError("DeleteOperation", name, persistence.ErrOperationNotFound)
	}

	return nil
}

// StageRepository stores stages in the stages table.
type StageRepository struct {
	db *sql.DB
}

func (r *StageRepository) Save(ctx context.Context, stage *models.Stage) error {
	created, err := insertDocument(ctx, r.db, "stages", stage.Name, stage)
	if err != nil {
		return err
	}

	if !created {
		return persistence.NewStoreError("SaveStage", stage.Name, persistence.ErrStageAlreadyExists)
	}

	return nil
}

func (r *StageRepository) GetByName(ctx context.Context, name string) (*models.Stage, error) {
	var stage models.Stage

	found, err := selectDocument(ctx, r.db, "stages", name, &stage)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetStage", name, persistence.ErrStageNotFound)
	}

	return &stage, nil
}

func (r *StageRepository) GetAll(ctx context.Context) ([]*models.Stage, error) {
	stages := make([]*models.Stage, 0)

	err := selectDocuments(ctx, r.db, "SELECT document FROM stages ORDER BY name", func(document []byte) error {
		var stage models.Stage
		if err := json.Unmarshal(document, &stage); err != nil {
			return fmt.Errorf("failed to unmarshal stage: %w", err)
		}

		stages = append(stages, &stage)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return stages, nil
}

func (r *StageRepository) Delete(ctx context.Context, name string) error {
	removed, err := deleteRow(ctx, r.db, "stages", "name", name)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewStoreError("DeleteStage", name, persistence.ErrStageNotFound)
	}

	return nil
}

// WorkflowRepository stores workflows in the workflows table. The
// reverse-dependency queries filter on the JSONB document's denormalized
// operations list and stages map.
type WorkflowRepository struct {
	db *sql.DB
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	created, err := insertDocument(ctx, r.db, "workflows", workflow.Name, workflow)
	if err != nil {
		return err
	}

	if !created {
		return persistence.NewStoreError("SaveWorkflow", workflow.Name, persistence.ErrWorkflowAlreadyExists)
	}

	return nil
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	document, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow document: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET document = $2 WHERE name = $1", workflow.Name, document)
	if err != nil {
		return fmt.Errorf("failed to update workflow document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("UpdateWorkflow", workflow.Name, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) GetByName(ctx context.Context, name string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := selectDocument(ctx, r.db, "workflows", name, &workflow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetWorkflow", name, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	return r.queryWorkflows(ctx, "SELECT document FROM workflows ORDER BY name")
}

func (r *WorkflowRepository) Delete(ctx context.Context, name string) error {
	removed, err := deleteRow(ctx, r.db, "workflows", "name", name)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewStoreError("DeleteWorkflow", name, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) ListByOperation(ctx context.Context, operationName string) ([]*models.Workflow, error) {
	return r.queryWorkflows(ctx,
		`SELECT document FROM workflows WHERE document -> 'operations' ? $1 ORDER BY name`, operationName)
}

func (r *WorkflowRepository) ListByStage(ctx context.Context, stageName string) ([]*models.Workflow, error) {
	return r.queryWorkflows(ctx,
		`SELECT document FROM workflows WHERE document -> 'stages' ? $1 ORDER BY name`, stageName)
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0)

	err := selectDocuments(ctx, r.db, query, func(document []byte) error {
		var workflow models.Workflow
		if err := json.Unmarshal(document, &workflow); err != nil {
			return fmt.Errorf("failed to unmarshal workflow: %w", err)
		}

		workflows = append(workflows, &workflow)

		return nil
	}, args...)
	if err != nil {
		return nil, err
	}

	return workflows, nil
}
