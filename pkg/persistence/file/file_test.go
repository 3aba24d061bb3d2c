package file

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestOperationRepository_SaveAndGet(t *testing.T) {
	p := newTestPersistence(t)

	op := &models.Operation{
		ID:   "op-1",
		Name: "transcode",
		Type: models.OperationTypeSync,
	}

	require.NoError(t, p.Operations().Save(t.Context(), op))

	stored, err := p.Operations().GetByName(t.Context(), "transcode")
	require.NoError(t, err)
	assert.Equal(t, "op-1", stored.ID)
	assert.Equal(t, models.OperationTypeSync, stored.Type)
}

func TestOperationRepository_SaveDuplicate(t *testing.T) {
	p := newTestPersistence(t)

	op := &models.Operation{ID: "op-1", Name: "transcode"}
	require.NoError(t, p.Operations().Save(t.Context(), op))

	err := p.Operations().Save(t.Context(), op)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrOperationAlreadyExists)
}

func TestOperationRepository_GetMissing(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.Operations().GetByName(t.Context(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrOperationNotFound)
	assert.True(t, persistence.IsNotFound(err))
}

func TestOperationRepository_Delete(t *testing.T) {
	p := newTestPersistence(t)

	require.NoError(t, p.Operations().Save(t.Context(), &models.Operation{Name: "transcode"}))
	require.NoError(t, p.Operations().Delete(t.Context(), "transcode"))

	err := p.Operations().Delete(t.Context(), "transcode")
	assert.ErrorIs(t, err, persistence.ErrOperationNotFound)
}

func TestWorkflowRepository_UpdateRequiresExisting(t *testing.T) {
	p := newTestPersistence(t)

	workflow := &models.Workflow{ID: "wf-1", Name: "video-pipeline"}

	err := p.Workflows().Update(t.Context(), workflow)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	require.NoError(t, p.Workflows().Save(t.Context(), workflow))

	workflow.Revisions = 3
	require.NoError(t, p.Workflows().Update(t.Context(), workflow))

	stored, err := p.Workflows().GetByName(t.Context(), "video-pipeline")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Revisions)
}

func TestWorkflowRepository_ReverseDependencyQueries(t *testing.T) {
	p := newTestPersistence(t)

	require.NoError(t, p.Workflows().Save(t.Context(), &models.Workflow{
		Name:       "video-pipeline",
		Operations: []string{"transcode", "package"},
		Stages:     map[string]models.StageRef{"ingest": {End: true}},
	}))
	require.NoError(t, p.Workflows().Save(t.Context(), &models.Workflow{
		Name:       "audio-pipeline",
		Operations: []string{"transcribe"},
		Stages:     map[string]models.StageRef{"analyze": {End: true}},
	}))

	byOp, err := p.Workflows().ListByOperation(t.Context(), "transcode")
	require.NoError(t, err)
	require.Len(t, byOp, 1)
	assert.Equal(t, "video-pipeline", byOp[0].Name)

	byStage, err := p.Workflows().ListByStage(t.Context(), "analyze")
	require.NoError(t, err)
	require.Len(t, byStage, 1)
	assert.Equal(t, "audio-pipeline", byStage[0].Name)

	none, err := p.Workflows().ListByOperation(t.Context(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExecutionRepository_UpdateStatus(t *testing.T) {
	p := newTestPersistence(t)

	execution := &models.WorkflowExecution{
		ID:     "exec-1",
		Status: models.ExecutionStatusQueued,
	}
	require.NoError(t, p.Executions().Save(t.Context(), execution))

	require.NoError(t, p.Executions().UpdateStatus(t.Context(),
		"exec-1", models.ExecutionStatusError, "operator timed out"))

	stored, err := p.Executions().GetByID(t.Context(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusError, stored.Status)
	assert.Equal(t, "operator timed out", stored.Message)

	err = p.Executions().UpdateStatus(t.Context(),
		"ghost", models.ExecutionStatusStarted, "")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestExecutionRepository_CountByStatus(t *testing.T) {
	p := newTestPersistence(t)

	for i, status := range []models.ExecutionStatus{
		models.ExecutionStatusStarted,
		models.ExecutionStatusStarted,
		models.ExecutionStatusComplete,
	} {
		require.NoError(t, p.Executions().Save(t.Context(), &models.WorkflowExecution{
			ID:     "exec-" + strconv.Itoa(i),
			Status: status,
		}))
	}

	count, err := p.Executions().CountByStatus(t.Context(), models.ExecutionStatusStarted)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLockRepository_CheckoutCheckin(t *testing.T) {
	p := newTestPersistence(t)

	lock, err := p.Locks().Checkout(t.Context(), "asset-1", "editor-7")
	require.NoError(t, err)
	assert.Equal(t, "asset-1", lock.AssetID)
	assert.Equal(t, "editor-7", lock.LockedBy)
	assert.False(t, lock.LockedAt.IsZero())

	// Second checkout of the same asset fails until checkin.
	_, err = p.Locks().Checkout(t.Context(), "asset-1", "editor-8")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrAssetLocked)

	stored, err := p.Locks().Get(t.Context(), "asset-1")
	require.NoError(t, err)
	assert.Equal(t, "editor-7", stored.LockedBy)

	require.NoError(t, p.Locks().Checkin(t.Context(), "asset-1"))

	_, err = p.Locks().Checkout(t.Context(), "asset-1", "editor-8")
	assert.NoError(t, err)
}

func TestLockRepository_CheckinUnlocked(t *testing.T) {
	p := newTestPersistence(t)

	err := p.Locks().Checkin(t.Context(), "asset-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrAssetNotLocked)

	_, err = p.Locks().Get(t.Context(), "asset-1")
	assert.ErrorIs(t, err, persistence.ErrAssetNotLocked)
}

func TestConfigRepository_SetAndGet(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.Config().Get(t.Context(), models.ConfigKeyMaxConcurrentWorkflows)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrConfigNotFound)

	require.NoError(t, p.Config().Set(t.Context(), &models.SystemConfig{
		Key:   models.ConfigKeyMaxConcurrentWorkflows,
		Value: 42,
	}))

	stored, err := p.Config().Get(t.Context(), models.ConfigKeyMaxConcurrentWorkflows)
	require.NoError(t, err)
	assert.Equal(t, 42, stored.Value)
}
