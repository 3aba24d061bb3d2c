package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflux/mediaflux/pkg/eventbus"
	"github.com/mediaflux/mediaflux/pkg/events"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence/file"
	"github.com/mediaflux/mediaflux/pkg/queue"
)

type stubBus struct {
	mu        sync.Mutex
	published []eventbus.Event
}

func (b *stubBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, event)

	return nil
}

func (b *stubBus) Handle(events.EventType, eventbus.EventHandler) error { return nil }
func (b *stubBus) Subscribe(context.Context) error                      { return nil }
func (b *stubBus) Close() error                                         { return nil }
func (b *stubBus) GenerateID() string                                   { return "test" }

func newExecutionService(t *testing.T) (*Execution, *file.Persistence, *queue.MemoryQueue, *stubBus) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	q := queue.NewMemoryQueue()
	bus := &stubBus{}

	return NewExecution(p, q, bus, slog.Default()), p, q, bus
}

func seedWorkflow(t *testing.T, p *file.Persistence) {
	t.Helper()

	workflow := &models.Workflow{
		ID:      "wf-1",
		Name:    "video-pipeline",
		StartAt: "ingest",
		Stages: map[string]models.StageRef{
			"ingest":  {Next: next("deliver")},
			"deliver": {End: true},
		},
		ExecutableHandle: "executable:video-pipeline",
	}

	require.NoError(t, p.Workflows().Save(t.Context(), workflow))
}

func TestExecutionStart(t *testing.T) {
	service, p, q, bus := newExecutionService(t)
	seedWorkflow(t, p)

	execution, err := service.Start(t.Context(), "video-pipeline", "asset-1")
	require.NoError(t, err)

	assert.NotEmpty(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusQueued, execution.Status)
	assert.Equal(t, "ingest", execution.CurrentStage)
	assert.Equal(t, "executable:video-pipeline", execution.Workflow.ExecutableHandle)

	// Every stage gets a runtime slot; the first stage's input is seeded.
	require.Contains(t, execution.Workflow.Runtime, "ingest")
	require.Contains(t, execution.Workflow.Runtime, "deliver")
	assert.NotNil(t, execution.Workflow.Runtime["ingest"].Input)

	stored, err := p.Executions().GetByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.ID, stored.ID)

	// The queued snapshot round-trips through the work queue.
	messages, err := q.Receive(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	var snapshot models.WorkflowExecution
	require.NoError(t, json.Unmarshal(messages[0].Payload, &snapshot))
	assert.Equal(t, execution.ID, snapshot.ID)
	assert.Equal(t, models.ExecutionStatusQueued, snapshot.Status)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	require.Len(t, bus.published, 1)
	assert.Equal(t, events.ExecutionQueuedEvent, bus.published[0].GetType())
}

func TestExecutionStart_SnapshotFrozen(t *testing.T) {
	service, p, _, _ := newExecutionService(t)
	seedWorkflow(t, p)

	execution, err := service.Start(t.Context(), "video-pipeline", "asset-1")
	require.NoError(t, err)

	// Editing the stored workflow must not affect the frozen snapshot.
	workflow, err := p.Workflows().GetByName(t.Context(), "video-pipeline")
	require.NoError(t, err)
	workflow.Stages["ingest"] = models.StageRef{End: true}
	require.NoError(t, p.Workflows().Update(t.Context(), workflow))

	stored, err := p.Executions().GetByID(t.Context(), execution.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Workflow.Stages["ingest"].Next)
	assert.Equal(t, "deliver", *stored.Workflow.Stages["ingest"].Next)
}

func TestExecutionStart_MissingAssetID(t *testing.T) {
	service, p, _, _ := newExecutionService(t)
	seedWorkflow(t, p)

	_, err := service.Start(t.Context(), "video-pipeline", "")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestExecutionStart_UnknownWorkflow(t *testing.T) {
	service, _, _, _ := newExecutionService(t)

	_, err := service.Start(t.Context(), "ghost", "asset-1")
	assert.Error(t, err)
}

func TestExecutionResume(t *testing.T) {
	service, p, q, _ := newExecutionService(t)
	seedWorkflow(t, p)

	execution, err := service.Start(t.Context(), "video-pipeline", "asset-1")
	require.NoError(t, err)

	// Drain the initial snapshot.
	_, err = q.Receive(t.Context(), 10)
	require.NoError(t, err)

	require.NoError(t, p.Executions().UpdateStatus(t.Context(),
		execution.ID, models.ExecutionStatusWaiting, ""))

	resumed, err := service.Resume(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusResumed, resumed.Status)

	messages, err := q.Receive(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	var snapshot models.WorkflowExecution
	require.NoError(t, json.Unmarshal(messages[0].Payload, &snapshot))
	assert.Equal(t, models.ExecutionStatusResumed, snapshot.Status)
}

func TestExecutionResume_OnlyFromWaiting(t *testing.T) {
	service, p, _, _ := newExecutionService(t)
	seedWorkflow(t, p)

	execution, err := service.Start(t.Context(), "video-pipeline", "asset-1")
	require.NoError(t, err)

	_, err = service.Resume(t.Context(), execution.ID)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
