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

// ExecutionRepository stores workflow executions in the workflow_executions
// table. The status column duplicates the document's status field so the
// admission scheduler's count query stays indexed.
type ExecutionRepository struct {
	db *sql.DB
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	document, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution document: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, status, document) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, document = EXCLUDED.document`,
		execution.ID, string(execution.Status), document)
	if err != nil {
		return fmt.Errorf("failed to save execution document: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM workflow_executions WHERE id = $1", id).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetExecution", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to query execution document: %w", err)
	}

	var execution models.WorkflowExecution
	if err := json.Unmarshal(document, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution document: %w", err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) GetAll(ctx context.Context) ([]*models.WorkflowExecution, error) {
	executions := make([]*models.WorkflowExecution, 0)

	err := selectDocuments(ctx, r.db,
		"SELECT document FROM workflow_executions ORDER BY created_at", func(document []byte) error {
			var execution models.WorkflowExecution
			if err := json.Unmarshal(document, &execution); err != nil {
				return fmt.Errorf("failed to unmarshal execution: %w", err)
			}

			executions = append(executions, &execution)

			return nil
		})
	if err != nil {
		return nil, err
	}

	return executions, nil
}

func (r *ExecutionRepository) UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus, message string) error {
	// Single conditional update: the document's status (and message on error)
	// move together with the indexed status column.
	query := `
		UPDATE workflow_executions
		SET status = $2,
			document = jsonb_set(document, '{status}', to_jsonb($2::text))
		WHERE id = $1`
	args := []any{id, string(status)}

	if status == models.ExecutionStatusError {
		query = `
			UPDATE workflow_executions
			SET status = $2,
				document = jsonb_set(jsonb_set(document, '{status}', to_jsonb($2::text)), '{message}', to_jsonb($3::text))
			WHERE id = $1`
		args = append(args, message)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update execution status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("UpdateExecutionStatus", id, persistence.ErrExecutionNotFound)
	}

	return nil
}

// CountByStatus counts executions via the status index. Reads may lag
// concurrent commits; callers accept the resulting slack.
func (r *ExecutionRepository) CountByStatus(ctx context.Context, status models.ExecutionStatus) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workflow_executions WHERE status = $1", string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	return count, nil
}

// ConfigRepository stores system configuration in the system_config table.
type ConfigRepository struct {
	db *sql.DB
}

func (r *ConfigRepository) Get(ctx context.Context, key string) (*models.SystemConfig, error) {
	var value int

	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM system_config WHERE key = $1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetConfig", key, persistence.ErrConfigNotFound)
		}

		return nil, fmt.Errorf("failed to query config: %w", err)
	}

	return &models.SystemConfig{Key: key, Value: value}, nil
}

func (r *ConfigRepository) Set(ctx context.Context, config *models.SystemConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		config.Key, config.Value)
	if err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}

	return nil
}

// LockRepository implements the optimistic asset checkout. The conditional
// INSERT/DELETE are the compare-and-swap: exactly one concurrent checkout
// wins, and checkin only removes a lock that exists.
type LockRepository struct {
	db *sql.DB
}

func (r *LockRepository) Checkout(ctx context.Context, assetID, lockedBy string) (*models.AssetLock, error) {
	var lock models.AssetLock

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO asset_locks (asset_id, locked_by, locked_at) VALUES ($1, $2, NOW())
		ON CONFLICT (asset_id) DO NOTHING
		RETURNING asset_id, locked_by, locked_at`,
		assetID, lockedBy).Scan(&lock.AssetID, &lock.LockedBy, &lock.LockedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("CheckoutAsset", assetID, persistence.ErrAssetLocked)
		}

		return nil, fmt.Errorf("failed to checkout asset: %w", err)
	}

	return &lock, nil
}

func (r *LockRepository) Checkin(ctx context.Context, assetID string) error {
	removed, err := deleteRow(ctx, r.db, "asset_locks", "asset_id", assetID)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewStoreError("CheckinAsset", assetID, persistence.ErrAssetNotLocked)
	}

	return nil
}

func (r *LockRepository) Get(ctx context.Context, assetID string) (*models.AssetLock, error) {
	var lock models.AssetLock

	err := r.db.QueryRowContext(ctx,
		"SELECT asset_id, locked_by, locked_at FROM asset_locks WHERE asset_id = $1",
		assetID).Scan(&lock.AssetID, &lock.LockedBy, &lock.LockedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetAssetLock", assetID, persistence.ErrAssetNotLocked)
		}

		return nil, fmt.Errorf("failed to query asset lock: %w", err)
	}

	return &lock, nil
}
