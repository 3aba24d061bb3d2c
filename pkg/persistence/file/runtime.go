package file

import (
	"context"
	"time"

	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

const (
	kindExecutions = "executions"
	kindConfig     = "config"
	kindLocks      = "locks"
)

// ExecutionRepository stores workflow executions as JSON files keyed by id.
type ExecutionRepository struct {
	p *Persistence
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.p.write(kindExecutions, execution.ID, execution)
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	found, err := r.p.read(kindExecutions, id, &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetExecution", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (r *ExecutionRepository) GetAll(_ context.Context) ([]*models.WorkflowExecution, error) {
	executions := make([]*models.WorkflowExecution, 0)

	err := readAll(r.p, kindExecutions, func(path string) error {
		var execution models.WorkflowExecution
		if err := decodeFile(path, &execution); err != nil {
			return err
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
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var execution models.WorkflowExecution

	found, err := r.p.read(kindExecutions, id, &execution)
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewStoreError("UpdateExecutionStatus", id, persistence.ErrExecutionNotFound)
	}

	execution.Status = status
	if status == models.ExecutionStatusError {
		execution.Message = message
	}

	return r.p.write(kindExecutions, id, &execution)
}

func (r *ExecutionRepository) CountByStatus(ctx context.Context, status models.ExecutionStatus) (int, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, execution := range all {
		if execution.Status == status {
			count++
		}
	}

	return count, nil
}

// ConfigRepository stores system configuration as JSON files keyed by key.
type ConfigRepository struct {
	p *Persistence
}

func (r *ConfigRepository) Get(_ context.Context, key string) (*models.SystemConfig, error) {
	var config models.SystemConfig

	found, err := r.p.read(kindConfig, key, &config)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetConfig", key, persistence.ErrConfigNotFound)
	}

	return &config, nil
}

func (r *ConfigRepository) Set(_ context.Context, config *models.SystemConfig) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.p.write(kindConfig, config.Key, config)
}

// LockRepository implements the optimistic asset checkout on files. The
// process mutex stands in for the store's conditional writes.
type LockRepository struct {
	p *Persistence
}

func (r *LockRepository) Checkout(_ context.Context, assetID, lockedBy string) (*models.AssetLock, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if r.p.exists(kindLocks, assetID) {
		return nil, persistence.NewStoreError("CheckoutAsset", assetID, persistence.ErrAssetLocked)
	}

	lock := &models.AssetLock{
		AssetID:  assetID,
		LockedBy: lockedBy,
		LockedAt: time.Now().UTC(),
	}

	if err := r.p.write(kindLocks, assetID, lock); err != nil {
		return nil, err
	}

	return lock, nil
}

func (r *LockRepository) Checkin(_ context.Context, assetID string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	removed, err := r.p.remove(kindLocks, assetID)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewStoreError("CheckinAsset", assetID, persistence.ErrAssetNotLocked)
	}

	return nil
}

func (r *LockRepository) Get(_ context.Context, assetID string) (*models.AssetLock, error) {
	var lock models.AssetLock

	found, err := r.p.read(kindLocks, assetID, &lock)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetAssetLock", assetID, persistence.ErrAssetNotLocked)
	}

	return &lock, nil
}
