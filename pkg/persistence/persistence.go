// Package persistence provides the durable store abstraction for workflow
// definitions, executions, system configuration and asset locks.
package persistence

import (
	"context"

	"github.com/mediaflux/mediaflux/pkg/models"
)

// OperationRepository stores registered operations, keyed by name.
type OperationRepository interface {
	// Save creates the operation. It fails with ErrOperationAlreadyExists
	// when the name is taken; operations are never updated in place.
	Save(ctx context.Context, op *models.Operation) error
	GetByName(ctx context.Context, name string) (*models.Operation, error)
	GetAll(ctx context.Context) ([]*models.Operation, error)
	Delete(ctx context.Context, name string) error
}

// StageRepository stores stages, keyed by name.
type StageRepository interface {
	Save(ctx context.Context, stage *models.Stage) error
	GetByName(ctx context.Context, name string) (*models.Stage, error)
	GetAll(ctx context.Context) ([]*models.Stage, error)
	Delete(ctx context.Context, name string) error
}

// WorkflowRepository stores workflows plus the reverse-dependency queries
// used for delete guarding and stale-flag propagation. Both List queries are
// full scans filtered on the denormalized fields.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	Update(ctx context.Context, workflow *models.Workflow) error
	GetByName(ctx context.Context, name string) (*models.Workflow, error)
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, name string) error
	ListByOperation(ctx context.Context, operationName string) ([]*models.Workflow, error)
	ListByStage(ctx context.Context, stageName string) ([]*models.Workflow, error)
}

// ExecutionRepository stores workflow executions. Executions are mutated by
// single-record writes only; there are no multi-record transactions.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	GetAll(ctx context.Context) ([]*models.WorkflowExecution, error)
	UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus, message string) error

	// CountByStatus counts executions in the given status. The count may lag
	// recent commits; the admission scheduler accepts transient
	// over-admission caused by that lag.
	CountByStatus(ctx context.Context, status models.ExecutionStatus) (int, error)
}

// ConfigRepository stores the singleton system-configuration records.
type ConfigRepository interface {
	Get(ctx context.Context, key string) (*models.SystemConfig, error)
	Set(ctx context.Context, config *models.SystemConfig) error
}

// LockRepository implements the optimistic asset checkout. Checkout creates
// the lock only when absent (exactly one concurrent caller wins); Checkin
// removes it only when present. Locks never expire on their own.
type LockRepository interface {
	Checkout(ctx context.Context, assetID, lockedBy string) (*models.AssetLock, error)
	Checkin(ctx context.Context, assetID string) error
	Get(ctx context.Context, assetID string) (*models.AssetLock, error)
}

// Persistence bundles the repositories behind one connectable unit.
type Persistence interface {
	Operations() OperationRepository
	Stages() StageRepository
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Config() ConfigRepository
	Locks() LockRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
