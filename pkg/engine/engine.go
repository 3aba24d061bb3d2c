// Package engine defines the contract of the external durable-execution
// dependency that runs compiled state-machine graphs. Only the contract
// lives here; deployments wire a concrete client, tests use the fake.
package engine

import (
	"context"

	"github.com/mediaflux/mediaflux/pkg/graph"
)

// HistoryEventKind classifies execution-history events. Kinds outside the
// failure set are reported verbatim by the engine and ignored by this core.
type HistoryEventKind string

const (
	HistoryEventFailed   HistoryEventKind = "Failed"
	HistoryEventAborted  HistoryEventKind = "Aborted"
	HistoryEventTimedOut HistoryEventKind = "TimedOut"
)

// HistoryEvent is one entry of an execution's history.
type HistoryEvent struct {
	Kind    HistoryEventKind `json:"kind"`
	Cause   string           `json:"cause,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Engine is the durable-execution dependency.
type Engine interface {
	// CompileAndRegister submits a graph definition under a name and returns
	// the handle of the registered executable.
	CompileAndRegister(ctx context.Context, name string, sm *graph.StateMachine) (string, error)

	// StartInstance starts one execution of a registered executable and
	// returns the execution reference.
	StartInstance(ctx context.Context, handle, runID string, input map[string]any) (string, error)

	// UpdateDefinition replaces the graph behind an existing handle.
	UpdateDefinition(ctx context.Context, handle string, sm *graph.StateMachine) error

	// DeleteInstance removes a registered executable.
	DeleteInstance(ctx context.Context, handle string) error

	// GetHistory fetches execution-history events, newest first when reverse
	// is set.
	GetHistory(ctx context.Context, executionRef string, pageSize int, reverse bool) ([]HistoryEvent, error)
}
