package completion

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflux/mediaflux/pkg/engine"
	"github.com/mediaflux/mediaflux/pkg/eventbus"
	"github.com/mediaflux/mediaflux/pkg/events"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence/file"
)

type capturingBus struct {
	mu        sync.Mutex
	published []eventbus.Event
}

func (b *capturingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, event)

	return nil
}

func (b *capturingBus) Handle(events.EventType, eventbus.EventHandler) error { return nil }
func (b *capturingBus) Subscribe(context.Context) error                      { return nil }
func (b *capturingBus) Close() error                                         { return nil }
func (b *capturingBus) GenerateID() string                                   { return "test" }

func (b *capturingBus) eventTypes() []events.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()

	types := make([]events.EventType, len(b.published))
	for i, event := range b.published {
		types[i] = event.GetType()
	}

	return types
}

func next(s string) *string { return &s }

func seedExecution(t *testing.T, p *file.Persistence) *models.WorkflowExecution {
	t.Helper()

	execution := &models.WorkflowExecution{
		ID:           "exec-1",
		AssetID:      "asset-1",
		CurrentStage: "ingest",
		Status:       models.ExecutionStatusStarted,
		Workflow: &models.WorkflowSnapshot{
			Name:             "video-pipeline",
			ExecutableHandle: "executable:video-pipeline",
			StartAt:          "ingest",
			Stages: map[string]models.StageRef{
				"ingest":  {Next: next("deliver")},
				"deliver": {End: true},
			},
			Runtime: map[string]models.StageExecution{
				"ingest":  {Input: &models.StageInput{}},
				"deliver": {},
			},
		},
		Globals: models.Globals{
			Media:    map[string]models.MediaPointer{},
			MetaData: map[string]any{},
		},
	}

	require.NoError(t, p.Executions().Save(t.Context(), execution))

	return execution
}

func newTestHandler(t *testing.T) (*Handler, *file.Persistence, *engine.Fake, *capturingBus) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	eng := engine.NewFake()
	bus := &capturingBus{}
	logger := slog.Default()

	return NewHandler(p, eng, bus, logger), p, eng, bus
}

func TestCompleteStage_AdvancesToNextStage(t *testing.T) {
	handler, p, _, bus := newTestHandler(t)
	seedExecution(t, p)

	outputs := []models.OperationOutput{
		{
			Operation: "transcode",
			Status:    models.OperationStatusComplete,
			Media:     map[string]models.MediaPointer{"video": {Bucket: "media", Key: "v1.mp4"}},
			MetaData:  map[string]any{"duration": 120.0},
		},
		{
			Operation: "subtitles",
			Status:    models.OperationStatusSkipped,
		},
	}

	err := handler.CompleteStage(t.Context(), "exec-1", "ingest", models.ExecutionStatusComplete, outputs)
	require.NoError(t, err)

	stored, err := p.Executions().GetByID(t.Context(), "exec-1")
	require.NoError(t, err)

	assert.Equal(t, "deliver", stored.CurrentStage)
	assert.Equal(t, models.ExecutionStatusStarted, stored.Status)
	assert.Equal(t, models.MediaPointer{Bucket: "media", Key: "v1.mp4"}, stored.Globals.Media["video"])
	assert.Equal(t, 120.0, stored.Globals.MetaData["duration"])

	ingest := stored.Workflow.Runtime["ingest"]
	assert.Equal(t, models.ExecutionStatusComplete, ingest.Status)
	assert.Len(t, ingest.Outputs, 2)

	// The next stage's input is seeded from the rolled-up globals.
	deliver := stored.Workflow.Runtime["deliver"]
	assert.Equal(t, models.ExecutionStatusStarted, deliver.Status)
	require.NotNil(t, deliver.Input)
	assert.Equal(t, stored.Globals.Media["video"], deliver.Input.Media["video"])

	// Still running, so no terminal event fires.
	assert.Empty(t, bus.eventTypes())
}

func TestCompleteStage_ErrorShortCircuitsToEnd(t *testing.T) {
	handler, p, _, bus := newTestHandler(t)
	seedExecution(t, p)

	outputs := []models.OperationOutput{
		{Operation: "video-test-sync-as", Status: models.OperationStatusComplete},
		{Operation: "video-test-sync-fail-as", Status: models.OperationStatusError, Message: "operator blew up"},
	}

	err := handler.CompleteStage(t.Context(), "exec-1", "ingest", models.ExecutionStatusComplete, outputs)
	require.NoError(t, err)

	stored, err := p.Executions().GetByID(t.Context(), "exec-1")
	require.NoError(t, err)

	assert.Equal(t, models.EndStage, stored.CurrentStage)
	assert.Equal(t, models.ExecutionStatusError, stored.Status)
	assert.Equal(t, models.ExecutionStatusError, stored.Workflow.Runtime["ingest"].Status)

	assert.Contains(t, bus.eventTypes(), events.ExecutionFailedEvent)
}

func TestCompleteStage_ReportedErrorNeverDowngraded(t *testing.T) {
	handler, p, _, _ := newTestHandler(t)
	seedExecution(t, p)

	outputs := []models.OperationOutput{
		{Operation: "transcode", Status: models.OperationStatusComplete},
	}

	err := handler.CompleteStage(t.Context(), "exec-1", "ingest", models.ExecutionStatusError, outputs)
	require.NoError(t, err)

	stored, err := p.Executions().GetByID(t.Context(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusError, stored.Status)
}

func TestCompleteStage_FinalStageCompletesExecution(t *testing.T) {
	handler, p, _, bus := newTestHandler(t)
	execution := seedExecution(t, p)
	execution.CurrentStage = "deliver"
	require.NoError(t, p.Executions().Save(t.Context(), execution))

	outputs := []models.OperationOutput{
		{Operation: "package", Status: models.OperationStatusComplete},
	}

	err := handler.CompleteStage(t.Context(), "exec-1", "deliver", models.ExecutionStatusComplete, outputs)
	require.NoError(t, err)

	stored, err := p.Executions().GetByID(t.Context(), "exec-1")
	require.NoError(t, err)

	assert.Equal(t, models.EndStage, stored.CurrentStage)
	assert.Equal(t, models.ExecutionStatusComplete, stored.Status)

	assert.Contains(t, bus.eventTypes(), events.ExecutionCompletedEvent)
}

func TestCompleteStage_SameStageMediaCollision(t *testing.T) {
	handler, p, _, _ := newTestHandler(t)
	seedExecution(t, p)

	outputs := []models.OperationOutput{
		{
			Operation: "transcode",
			Status:    models.OperationStatusComplete,
			Media:     map[string]models.MediaPointer{"video": {Bucket: "media", Key: "a.mp4"}},
		},
		{
			Operation: "transcode-alt",
			Status:    models.OperationStatusComplete,
			Media:     map[string]models.MediaPointer{"video": {Bucket: "media", Key: "b.mp4"}},
		},
	}

	err := handler.CompleteStage(t.Context(), "exec-1", "ingest", models.ExecutionStatusComplete, outputs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMediaCollision)

	stored, err := p.Executions().GetByID(t.Context(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusError, stored.Status)
	assert.Equal(t, models.EndStage, stored.CurrentStage)
}

func TestCompleteStage_CrossStageMediaOverwrite(t *testing.T) {
	handler, p, _, _ := newTestHandler(t)
	execution := seedExecution(t, p)
	execution.Globals.Media["video"] = models.MediaPointer{Bucket: "media", Key: "old.mp4"}
	require.NoError(t, p.Executions().Save(t.Context(), execution))

	outputs := []models.OperationOutput{
		{
			Operation: "transcode",
			Status:    models.OperationStatusComplete,
			Media:     map[string]models.MediaPointer{"video": {Bucket: "media", Key: "new.mp4"}},
		},
	}

	err := handler.CompleteStage(t.Context(), "exec-1", "ingest", models.ExecutionStatusComplete, outputs)
	require.NoError(t, err)

	stored, err := p.Executions().GetByID(t.Context(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "new.mp4", stored.Globals.Media["video"].Key)
}

func TestCompleteStage_MissingExecution(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	err := handler.CompleteStage(t.Context(), "ghost", "ingest", models.ExecutionStatusComplete, nil)
	assert.Error(t, err)
}

func TestHandleEngineFailure(t *testing.T) {
	handler, p, eng, bus := newTestHandler(t)
	execution := seedExecution(t, p)
	execution.EngineExecutionRef = "execution:exec-1"
	require.NoError(t, p.Executions().Save(t.Context(), execution))

	// Chronological history: the first failure is the root cause.
	eng.SeedHistory("execution:exec-1", []engine.HistoryEvent{
		{Kind: "Started"},
		{Kind: engine.HistoryEventFailed, Cause: "operator timed out"},
		{Kind: engine.HistoryEventAborted, Message: "execution aborted"},
	})

	event := events.EngineFailure{
		BaseEvent:    events.NewBaseEvent(events.EngineFailureEventType),
		ExecutionRef: "execution:exec-1",
		Status:       events.EngineFailureError,
	}

	err := handler.HandleEngineFailure(t.Context(), event)
	require.NoError(t, err)

	stored, err := p.Executions().GetByID(t.Context(), "exec-1")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusError, stored.Status)
	assert.Equal(t, models.EndStage, stored.CurrentStage)
	assert.Equal(t, "operator timed out", stored.Message)

	assert.Contains(t, bus.eventTypes(), events.ExecutionFailedEvent)
}

func TestHandleEngineFailure_UnknownRef(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	event := events.EngineFailure{
		BaseEvent:    events.NewBaseEvent(events.EngineFailureEventType),
		ExecutionRef: "execution:ghost",
		Status:       events.EngineFailureTimeout,
	}

	err := handler.HandleEngineFailure(t.Context(), event)
	assert.Error(t, err)
}
