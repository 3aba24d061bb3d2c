// Package persistence provides standardized error types for store operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrOperationNotFound indicates an operation was not found by name.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrStageNotFound indicates a stage was not found by name.
	ErrStageNotFound = errors.New("stage not found")

	// ErrWorkflowNotFound indicates a workflow was not found by name.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates a workflow execution was not found by id.
	ErrExecutionNotFound = errors.New("workflow execution not found")

	// ErrConfigNotFound indicates no record exists for a configuration key.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrOperationAlreadyExists indicates the operation name is taken.
	ErrOperationAlreadyExists = errors.New("operation already exists")

	// ErrStageAlreadyExists indicates the stage name is taken.
	ErrStageAlreadyExists = errors.New("stage already exists")

	// ErrWorkflowAlreadyExists indicates the workflow name is taken.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrAssetLocked indicates a checkout lost the conditional create.
	ErrAssetLocked = errors.New("asset already checked out")

	// ErrAssetNotLocked indicates a checkin found no lock to remove.
	ErrAssetNotLocked = errors.New("asset not checked out")
)

// StoreError wraps store failures with the operation and record they concern.
type StoreError struct {
	Op     string // operation being performed, e.g. "SaveStage"
	Record string // record identifier, if applicable
	Err    error
}

func (e *StoreError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Record, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a store error with context.
func NewStoreError(op, record string, err error) *StoreError {
	return &StoreError{Op: op, Record: record, Err: err}
}

// IsNotFound checks whether an error indicates a missing record of any kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOperationNotFound) ||
		errors.Is(err, ErrStageNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrConfigNotFound)
}

// IsAlreadyExists checks whether an error indicates a name conflict.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrOperationAlreadyExists) ||
		errors.Is(err, ErrStageAlreadyExists) ||
		errors.Is(err, ErrWorkflowAlreadyExists)
}
