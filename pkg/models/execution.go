package models

import "time"

// ExecutionStatus is the lifecycle state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusQueued   ExecutionStatus = "queued"
	ExecutionStatusStarted  ExecutionStatus = "started"
	ExecutionStatusWaiting  ExecutionStatus = "waiting"
	ExecutionStatusResumed  ExecutionStatus = "resumed"
	ExecutionStatusComplete ExecutionStatus = "complete"
	ExecutionStatusError    ExecutionStatus = "error"
)

// IsTerminal reports whether the status ends the execution's lifecycle.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusComplete || s == ExecutionStatusError
}

// OperationStatus is the per-operation outcome inside a stage.
type OperationStatus string

const (
	OperationStatusStarted  OperationStatus = "started"
	OperationStatusComplete OperationStatus = "complete"
	OperationStatusSkipped  OperationStatus = "skipped"
	OperationStatusError    OperationStatus = "error"
)

// EndStage is the sentinel CurrentStage value of a finished execution.
const EndStage = "End"

// MediaPointer locates one media object produced by an operation.
type MediaPointer struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// OperationOutput is the rolled-up result one operation reports when its
// branch of a stage settles.
type OperationOutput struct {
	Operation string                  `json:"operation"`
	Status    OperationStatus         `json:"status"`
	Media     map[string]MediaPointer `json:"media,omitempty"`
	MetaData  map[string]any          `json:"metadata,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// StageInput is what a stage's branches receive when the stage starts:
// the execution-wide globals as of the previous stage's completion.
type StageInput struct {
	Media    map[string]MediaPointer `json:"media,omitempty"`
	MetaData map[string]any          `json:"metadata,omitempty"`
}

// StageExecution is the per-stage runtime slot inside an execution's
// workflow snapshot.
type StageExecution struct {
	Status  ExecutionStatus   `json:"status,omitempty"`
	Input   *StageInput       `json:"input,omitempty"`
	Outputs []OperationOutput `json:"outputs,omitempty"`
}

// WorkflowSnapshot is the deep copy of a workflow definition frozen into an
// execution at creation time, extended with per-stage runtime state. Later
// edits to the stored workflow never affect a running execution.
type WorkflowSnapshot struct {
	Name             string                    `json:"name"`
	ExecutableHandle string                    `json:"executable_handle"`
	StartAt          string                    `json:"start_at"`
	Stages           map[string]StageRef       `json:"stages"`
	Runtime          map[string]StageExecution `json:"runtime"`
}

// Globals is the execution-wide namespace shared across stages. Media maps
// media type to the latest pointer for it; MetaData is a free-form key/value
// accumulation.
type Globals struct {
	Media    map[string]MediaPointer `json:"media"`
	MetaData map[string]any          `json:"metadata"`
}

// WorkflowExecution is one run instance of a workflow.
type WorkflowExecution struct {
	ID                 string            `json:"id"`
	AssetID            string            `json:"asset_id" validate:"required"`
	CurrentStage       string            `json:"current_stage"`
	Status             ExecutionStatus   `json:"status"`
	EngineExecutionRef string            `json:"engine_execution_ref,omitempty"`
	Workflow           *WorkflowSnapshot `json:"workflow"`
	Globals            Globals           `json:"globals"`
	Message            string            `json:"message,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}
