// Package compiler turns declarative operation, stage and workflow
// definitions into executable state-machine graphs.
package compiler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOperationType indicates an operation type outside sync/async.
	ErrUnknownOperationType = errors.New("unknown operation type")

	// ErrMissingMonitorHandler indicates an async operation registered
	// without the monitor handler its poll loop needs.
	ErrMissingMonitorHandler = errors.New("async operation requires monitor_handler")

	// ErrMissingStartHandler indicates an operation without a start handler.
	ErrMissingStartHandler = errors.New("operation requires start_handler")

	// ErrDuplicateOperation indicates the same operation listed twice in one stage.
	ErrDuplicateOperation = errors.New("duplicate operation in stage")

	// ErrOperationNotResolved indicates a stage referencing an unregistered operation.
	ErrOperationNotResolved = errors.New("operation not resolved")

	// ErrStageNotResolved indicates a workflow referencing an unregistered stage.
	ErrStageNotResolved = errors.New("stage not resolved")

	// ErrEndStageCount indicates a workflow with zero or multiple terminal stages.
	ErrEndStageCount = errors.New("workflow must declare exactly one end stage")

	// ErrBrokenChain indicates a stage reference with both or neither of Next/End,
	// an unreachable stage, or a cycle.
	ErrBrokenChain = errors.New("workflow stages do not form a single chain")

	// ErrMalformedGraph indicates a stored stage graph without a usable end state.
	ErrMalformedGraph = errors.New("stage graph has no end state")
)

// CompileError wraps a compilation failure with the definition it names.
type CompileError struct {
	Kind    string // "operation", "stage" or "workflow"
	Name    string // offending definition name
	Subject string // nested definition the failure points at, if any
	Err     error
}

func (e *CompileError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("compile %s %q: %s: %v", e.Kind, e.Name, e.Subject, e.Err)
	}

	return fmt.Sprintf("compile %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func (e *CompileError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsCompileError reports whether err is any of the compiler's validation
// failures. These map to bad-request responses at the API boundary.
func IsCompileError(err error) bool {
	return errors.Is(err, ErrUnknownOperationType) ||
		errors.Is(err, ErrMissingMonitorHandler) ||
		errors.Is(err, ErrMissingStartHandler) ||
		errors.Is(err, ErrDuplicateOperation) ||
		errors.Is(err, ErrOperationNotResolved) ||
		errors.Is(err, ErrStageNotResolved) ||
		errors.Is(err, ErrEndStageCount) ||
		errors.Is(err, ErrBrokenChain) ||
		errors.Is(err, ErrMalformedGraph)
}
