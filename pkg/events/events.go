// Package events defines event types and structures for execution lifecycle
// notifications, scheduler wake signals and engine failure escalation.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediaflux/mediaflux/pkg/models"
)

type EventType string

// Topic carries every control-plane event.
const Topic = "mediaflux.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events. Queued, completed and failed double as
	// scheduler wake signals: the scheduler subscribes to all three.
	ExecutionQueuedEvent    EventType = "execution.queued"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"

	// SchedulerWakeEventType is the empty-payload wake signal fired on any
	// status transition into queued/complete/error.
	SchedulerWakeEventType EventType = "scheduler.wake"

	// StageCompleteEventType is published by the engine-facing callback when
	// a stage's parallel branches all settle.
	StageCompleteEventType EventType = "stage.complete"

	// EngineFailureEventType escalates an unrecoverable engine execution
	// failure to the error handler.
	EngineFailureEventType EventType = "engine.failure"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
}

type ExecutionQueued struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	WorkflowName string `json:"workflow_name"`
	AssetID      string `json:"asset_id"`
}

func (e ExecutionQueued) GetType() EventType {
	return ExecutionQueuedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID        string `json:"execution_id"`
	EngineExecutionRef string `json:"engine_execution_ref"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// SchedulerWake carries no payload; receiving it runs an admission cycle.
type SchedulerWake struct {
	BaseEvent
}

func (e SchedulerWake) GetType() EventType {
	return SchedulerWakeEventType
}

// StageComplete carries the rolled-up branch outputs of a settled stage.
type StageComplete struct {
	BaseEvent

	ExecutionID string                   `json:"execution_id"`
	StageName   string                   `json:"stage_name"`
	Status      models.ExecutionStatus   `json:"status"`
	Outputs     []models.OperationOutput `json:"outputs"`
}

func (e StageComplete) GetType() EventType {
	return StageCompleteEventType
}

// EngineFailureStatus classifies an unrecoverable engine failure.
type EngineFailureStatus string

const (
	EngineFailureError   EngineFailureStatus = "ERROR"
	EngineFailureAborted EngineFailureStatus = "ABORTED"
	EngineFailureTimeout EngineFailureStatus = "TIME_OUT"
)

// EngineFailure is emitted when an engine execution dies outside the normal
// stage-completion path.
type EngineFailure struct {
	BaseEvent

	ExecutionRef     string              `json:"execution_ref"`
	ExecutableHandle string              `json:"executable_handle"`
	Status           EngineFailureStatus `json:"status"`
}

func (e EngineFailure) GetType() EventType {
	return EngineFailureEventType
}
