package compiler

import (
	"github.com/mediaflux/mediaflux/pkg/graph"
	"github.com/mediaflux/mediaflux/pkg/models"
)

// StageGraphResolver fetches the compiled graph of a registered stage.
type StageGraphResolver func(name string) (*graph.StateMachine, error)

// CompileWorkflow validates the stage chain and merges the referenced stage
// graphs into one flat machine. Validation: exactly one stage carries End,
// every stage carries exactly one of Next/End, every Next resolves inside
// the workflow, and the chain from StartAt visits each stage once with no
// cycle. Merging rewrites each stage graph's end state to jump to the next
// stage's entry; the last stage keeps its End marker.
//
// The resolver is consulted for every referenced stage on every compile, so
// re-compiling a workflow picks up the current stored stage definitions.
func CompileWorkflow(wf *models.Workflow, resolve StageGraphResolver) (*graph.StateMachine, error) {
	order, err := validateChain(wf)
	if err != nil {
		return nil, err
	}

	merged := graph.New("", wf.Name)

	var previousEnd *graph.State

	for i, stageName := range order {
		sg, err := resolve(stageName)
		if err != nil || sg == nil {
			return nil, &CompileError{Kind: "workflow", Name: wf.Name, Subject: stageName, Err: ErrStageNotResolved}
		}

		sg = sg.Clone()

		endName := sg.EndState()
		if endName == "" {
			return nil, &CompileError{Kind: "workflow", Name: wf.Name, Subject: stageName, Err: ErrMalformedGraph}
		}

		if i == 0 {
			merged.StartAt = sg.StartAt
		}

		if previousEnd != nil {
			previousEnd.End = false
			previousEnd.Next = sg.StartAt
		}

		for name, state := range sg.States {
			if _, exists := merged.States[name]; exists {
				return nil, &CompileError{Kind: "workflow", Name: wf.Name, Subject: stageName, Err: ErrBrokenChain}
			}

			merged.States[name] = state
		}

		previousEnd = merged.States[endName]
	}

	return merged, nil
}

// validateChain checks the structural invariants of the stage map and
// returns stage names in chain order.
func validateChain(wf *models.Workflow) ([]string, error) {
	endCount := 0

	for name, ref := range wf.Stages {
		hasNext := ref.Next != nil && *ref.Next != ""
		if hasNext == ref.End {
			return nil, &CompileError{Kind: "workflow", Name: wf.Name, Subject: name, Err: ErrBrokenChain}
		}

		if ref.End {
			endCount++
		}
	}

	if endCount != 1 {
		return nil, &CompileError{Kind: "workflow", Name: wf.Name, Err: ErrEndStageCount}
	}

	order := make([]string, 0, len(wf.Stages))
	seen := make(map[string]bool, len(wf.Stages))

	name := wf.StartAt
	for {
		ref, ok := wf.Stages[name]
		if !ok {
			return nil, &CompileError{Kind: "workflow", Name: wf.Name, Subject: name, Err: ErrStageNotResolved}
		}

		if seen[name] {
			return nil, &CompileError{Kind: "workflow", Name: wf.Name, Subject: name, Err: ErrBrokenChain}
		}

		seen[name] = true
		order = append(order, name)

		if ref.End {
			break
		}

		name = *ref.Next
	}

	// An unreferenced stage never appears on the walk from StartAt.
	if len(order) != len(wf.Stages) {
		return nil, &CompileError{Kind: "workflow", Name: wf.Name, Err: ErrBrokenChain}
	}

	return order, nil
}

// FlattenOperations returns the distinct operation names used by the given
// stages, in chain order. Stored on the workflow for reverse-dependency
// queries.
func FlattenOperations(order []string, stages map[string]*models.Stage) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)

	for _, stageName := range order {
		stage, ok := stages[stageName]
		if !ok {
			continue
		}

		for _, opName := range stage.Operations {
			if !seen[opName] {
				seen[opName] = true

				out = append(out, opName)
			}
		}
	}

	return out
}
