// Package services provides the registration and execution business layer on
// top of persistence, compiler and engine.
package services

import (
	"errors"
	"fmt"

	"github.com/mediaflux/mediaflux/pkg/compiler"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnknownConfigKey = errors.New("unrecognized configuration key")
	ErrInvalidConfig    = errors.New("invalid configuration value")

	// ErrDependentWorkflows guards deletion of a definition still referenced
	// by compiled workflows. Bypassed with force, which marks the dependents
	// stale instead.
	ErrDependentWorkflows = errors.New("definition is referenced by existing workflows")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // operation name
	Message string // human-readable message
	Err     error  // underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a validation error with context.
func NewValidationError(op, message string, err error) *ServiceError {
	return &ServiceError{Op: op, Message: message, Err: err}
}

// IsValidationError checks if an error should surface as HTTP 400. Compiler
// failures count: a structurally broken definition is the caller's defect.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnknownConfigKey) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrDependentWorkflows) ||
		compiler.IsCompileError(err)
}

// IsConflictError checks if an error should surface as HTTP 409.
func IsConflictError(err error) bool {
	return persistence.IsAlreadyExists(err)
}
