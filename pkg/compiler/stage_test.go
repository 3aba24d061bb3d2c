package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflux/mediaflux/pkg/graph"
	"github.com/mediaflux/mediaflux/pkg/models"
)

func resolverFor(ops ...*models.Operation) OperationResolver {
	byName := make(map[string]*models.Operation, len(ops))
	for _, op := range ops {
		byName[op.Name] = op
	}

	return func(name string) (*models.Operation, error) {
		return byName[name], nil
	}
}

func TestCompileStage(t *testing.T) {
	stage := &models.Stage{
		Name:       "ingest",
		Operations: []string{"transcode", "analyze"},
	}

	sm, err := CompileStage(stage, resolverFor(syncOperation("transcode"), asyncOperation("analyze")))
	require.NoError(t, err)

	assert.Equal(t, "Stage ingest", sm.StartAt)

	parallel := sm.States["Stage ingest"]
	require.NotNil(t, parallel)
	assert.Equal(t, graph.StateTypeParallel, parallel.Type)
	require.Len(t, parallel.Branches, 2)
	assert.Equal(t, "Complete Stage ingest", parallel.Next)

	// Branch errors also route into the completion call-out.
	require.Len(t, parallel.Catch, 1)
	assert.Equal(t, "Complete Stage ingest", parallel.Catch[0].Next)

	complete := sm.States["Complete Stage ingest"]
	require.NotNil(t, complete)
	assert.Equal(t, CompleteStageResource, complete.Resource)
	assert.True(t, complete.End)

	// Branch states carry the stage prefix, including internal references.
	branch := parallel.Branches[0]
	assert.Equal(t, "ingest Filter transcode Media Type", branch.StartAt)
	assert.Equal(t, "ingest Skip transcode?", branch.States["ingest Filter transcode Media Type"].Next)

	// Member configurations are denormalized onto the stage.
	require.Contains(t, stage.Configuration, "transcode")
	assert.Equal(t, "video", stage.Configuration["transcode"].MediaType)
}

func TestCompileStage_DuplicateOperation(t *testing.T) {
	stage := &models.Stage{
		Name:       "ingest",
		Operations: []string{"transcode", "transcode"},
	}

	_, err := CompileStage(stage, resolverFor(syncOperation("transcode")))
	assert.ErrorIs(t, err, ErrDuplicateOperation)
}

func TestCompileStage_UnresolvedOperation(t *testing.T) {
	stage := &models.Stage{
		Name:       "ingest",
		Operations: []string{"missing"},
	}

	_, err := CompileStage(stage, resolverFor())
	assert.ErrorIs(t, err, ErrOperationNotResolved)
}

func TestCompileStage_SharedOperationAcrossStages(t *testing.T) {
	op := syncOperation("transcode")

	fragment, err := CompileOperation(op)
	require.NoError(t, err)

	op.Graph = fragment

	first, err := CompileStage(&models.Stage{Name: "first", Operations: []string{"transcode"}}, resolverFor(op))
	require.NoError(t, err)

	second, err := CompileStage(&models.Stage{Name: "second", Operations: []string{"transcode"}}, resolverFor(op))
	require.NoError(t, err)

	// Same operation, different stage prefixes: no state-name overlap.
	firstBranch := first.States["Stage first"].Branches[0]
	secondBranch := second.States["Stage second"].Branches[0]

	for name := range firstBranch.States {
		assert.NotContains(t, secondBranch.States, name)
	}

	// The stored fragment itself stays unprefixed.
	assert.Equal(t, "Filter transcode Media Type", op.Graph.StartAt)
}
