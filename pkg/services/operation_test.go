package services

import (
	"log/slog"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflux/mediaflux/pkg/compiler"
	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence/file"
	"github.com/mediaflux/mediaflux/pkg/registry"
)

func newOperationService(t *testing.T) (*Operation, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.Default()
	validate := validator.New(validator.WithRequiredStructEnabled())
	reg := registry.NewRegistry(logger)

	return NewOperation(p, reg, validate, logger), p
}

func validOperation(name string) *models.Operation {
	return &models.Operation{
		Name: name,
		Type: models.OperationTypeSync,
		Configuration: models.OperationConfiguration{
			MediaType: "video",
			Enabled:   true,
		},
		StartHandler: "operator:" + name + ":start",
	}
}

func TestOperationRegister(t *testing.T) {
	service, p := newOperationService(t)

	op, err := service.Register(t.Context(), validOperation("transcode"))
	require.NoError(t, err)

	assert.NotEmpty(t, op.ID)
	assert.NotNil(t, op.Graph)
	assert.Equal(t, "transcode-stage", op.StageName)
	assert.Equal(t, 1, op.Version)

	// Registration also creates the singleton stage.
	stage, err := p.Stages().GetByName(t.Context(), "transcode-stage")
	require.NoError(t, err)
	assert.Equal(t, []string{"transcode"}, stage.Operations)
	require.NotNil(t, stage.Graph)
	assert.Equal(t, "Stage transcode-stage", stage.Graph.StartAt)
}

func TestOperationRegister_AsyncWithoutMonitorHandler(t *testing.T) {
	service, p := newOperationService(t)

	op := validOperation("transcribe")
	op.Type = models.OperationTypeAsync

	_, err := service.Register(t.Context(), op)
	require.Error(t, err)
	assert.ErrorIs(t, err, compiler.ErrMissingMonitorHandler)
	assert.True(t, IsValidationError(err))

	// Nothing persisted on a failed registration.
	_, err = p.Operations().GetByName(t.Context(), "transcribe")
	assert.Error(t, err)
}

func TestOperationRegister_InvalidInput(t *testing.T) {
	service, _ := newOperationService(t)

	op := validOperation("transcode")
	op.Configuration.MediaType = ""

	_, err := service.Register(t.Context(), op)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestOperationRegister_DuplicateName(t *testing.T) {
	service, _ := newOperationService(t)

	_, err := service.Register(t.Context(), validOperation("transcode"))
	require.NoError(t, err)

	_, err = service.Register(t.Context(), validOperation("transcode"))
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
}

func TestOperationDelete_GuardedByDependents(t *testing.T) {
	service, p := newOperationService(t)

	_, err := service.Register(t.Context(), validOperation("transcode"))
	require.NoError(t, err)

	workflow := &models.Workflow{
		ID:         "wf-1",
		Name:       "video-pipeline",
		StartAt:    "transcode-stage",
		Stages:     map[string]models.StageRef{"transcode-stage": {End: true}},
		Operations: []string{"transcode"},
	}
	require.NoError(t, p.Workflows().Save(t.Context(), workflow))

	err = service.Delete(t.Context(), "transcode", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependentWorkflows)
	assert.Contains(t, err.Error(), "video-pipeline")

	// Force: delete proceeds and the dependent is marked stale.
	err = service.Delete(t.Context(), "transcode", true)
	require.NoError(t, err)

	stored, err := p.Workflows().GetByName(t.Context(), "video-pipeline")
	require.NoError(t, err)
	assert.Contains(t, stored.StaleOperations, "transcode")

	_, err = p.Operations().GetByName(t.Context(), "transcode")
	assert.Error(t, err)

	// The singleton stage goes with the operation.
	_, err = p.Stages().GetByName(t.Context(), "transcode-stage")
	assert.Error(t, err)
}

func TestOperationDelete_Unreferenced(t *testing.T) {
	service, _ := newOperationService(t)

	_, err := service.Register(t.Context(), validOperation("transcode"))
	require.NoError(t, err)

	err = service.Delete(t.Context(), "transcode", false)
	assert.NoError(t, err)
}
