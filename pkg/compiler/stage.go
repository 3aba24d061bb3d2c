package compiler

import (
	"fmt"

	"github.com/mediaflux/mediaflux/pkg/graph"
	"github.com/mediaflux/mediaflux/pkg/models"
)

// OperationResolver looks up a registered operation by name.
type OperationResolver func(name string) (*models.Operation, error)

// CompileStage builds the parallel-branch graph for a stage and denormalizes
// each member operation's configuration into stage.Configuration. Branch
// order follows stage.Operations; duplicates are rejected. The parallel step
// catches any branch error into the completion call-out, so stage completion
// runs whether the branches settled cleanly or not.
func CompileStage(stage *models.Stage, resolve OperationResolver) (*graph.StateMachine, error) {
	parallel := fmt.Sprintf("Stage %s", stage.Name)
	complete := fmt.Sprintf("Complete Stage %s", stage.Name)

	branches := make([]*graph.StateMachine, 0, len(stage.Operations))
	seen := make(map[string]bool, len(stage.Operations))

	if stage.Configuration == nil {
		stage.Configuration = make(map[string]models.OperationConfiguration, len(stage.Operations))
	}

	for _, opName := range stage.Operations {
		if seen[opName] {
			return nil, &CompileError{Kind: "stage", Name: stage.Name, Subject: opName, Err: ErrDuplicateOperation}
		}

		seen[opName] = true

		op, err := resolve(opName)
		if err != nil || op == nil {
			return nil, &CompileError{Kind: "stage", Name: stage.Name, Subject: opName, Err: ErrOperationNotResolved}
		}

		fragment := op.Graph
		if fragment == nil {
			fragment, err = CompileOperation(op)
			if err != nil {
				return nil, err
			}
		}

		branches = append(branches, graph.Prefix(fragment, stage.Name))
		stage.Configuration[opName] = op.Configuration
	}

	sm := graph.New(parallel, stage.Name)

	sm.States[parallel] = &graph.State{
		Type:     graph.StateTypeParallel,
		Branches: branches,
		Next:     complete,
		Catch:    []graph.Catcher{{ErrorEquals: []string{graph.ErrorWildcard}, Next: complete, ResultPath: "$.error"}},
	}

	sm.States[complete] = &graph.State{
		Type:     graph.StateTypeTask,
		Resource: CompleteStageResource,
		Parameters: map[string]any{
			"stage_name": stage.Name,
		},
		End: true,
	}

	return sm, nil
}
