package compiler

import (
	"fmt"

	"github.com/mediaflux/mediaflux/pkg/graph"
	"github.com/mediaflux/mediaflux/pkg/models"
)

// Resources invoked by every compiled operation graph besides the operation's
// own handlers. The engine resolves them to the shared filter and failure
// operators.
const (
	FilterResource        = "mediaflux:filter-media-type"
	OperatorFailsResource = "mediaflux:operator-failed"
	CompleteStageResource = "mediaflux:complete-stage"
)

// monitorPollSeconds is the wait between async status polls.
const monitorPollSeconds = 10

// CompileOperation builds the state-machine fragment for one operation. The
// fragment's state names interpolate only the operation name; embedding into
// a stage applies the stage-name prefix that keeps fragments collision-free
// across stages.
//
// Both variants share the head: a media-type filter task feeding a skip
// choice. Operations whose filter does not mark them started terminate
// without executing. Every task catches all errors into the operation's
// failed task, which reports the failure and ends the branch.
func CompileOperation(op *models.Operation) (*graph.StateMachine, error) {
	if op.StartHandler == "" {
		return nil, &CompileError{Kind: "operation", Name: op.Name, Err: ErrMissingStartHandler}
	}

	switch op.Type {
	case models.OperationTypeSync:
		return compileSyncOperation(op), nil
	case models.OperationTypeAsync:
		if op.MonitorHandler == nil || *op.MonitorHandler == "" {
			return nil, &CompileError{Kind: "operation", Name: op.Name, Err: ErrMissingMonitorHandler}
		}

		return compileAsyncOperation(op), nil
	default:
		return nil, &CompileError{
			Kind:    "operation",
			Name:    op.Name,
			Subject: string(op.Type),
			Err:     ErrUnknownOperationType,
		}
	}
}

func operationStateNames(opName string) (filter, skip, notStarted, execute, succeeded, failed string) {
	filter = fmt.Sprintf("Filter %s Media Type", opName)
	skip = fmt.Sprintf("Skip %s?", opName)
	notStarted = fmt.Sprintf("%s Not Started", opName)
	execute = fmt.Sprintf("Execute %s", opName)
	succeeded = fmt.Sprintf("%s Succeeded", opName)
	failed = fmt.Sprintf("%s Failed", opName)

	return
}

func catchAll(next string) []graph.Catcher {
	return []graph.Catcher{{ErrorEquals: []string{graph.ErrorWildcard}, Next: next, ResultPath: "$.error"}}
}

func compileHead(op *models.Operation, sm *graph.StateMachine) {
	filter, skip, notStarted, execute, _, failed := operationStateNames(op.Name)

	sm.States[filter] = &graph.State{
		Type:     graph.StateTypeTask,
		Resource: FilterResource,
		Parameters: map[string]any{
			"operation_name": op.Name,
			"media_type":     op.Configuration.MediaType,
			"enabled":        op.Configuration.Enabled,
		},
		Next:  skip,
		Catch: catchAll(failed),
	}

	sm.States[skip] = &graph.State{
		Type: graph.StateTypeChoice,
		Choices: []graph.ChoiceRule{
			{Variable: "$.status", StringEquals: string(models.OperationStatusStarted), Next: execute},
		},
		Default: notStarted,
	}

	sm.States[notStarted] = &graph.State{Type: graph.StateTypeSucceed}
}

func compileTail(op *models.Operation, sm *graph.StateMachine) {
	_, _, _, _, succeeded, failed := operationStateNames(op.Name)

	sm.States[succeeded] = &graph.State{Type: graph.StateTypeSucceed}

	sm.States[failed] = &graph.State{
		Type:     graph.StateTypeTask,
		Resource: OperatorFailsResource,
		Parameters: map[string]any{
			"operation_name": op.Name,
		},
		End: true,
	}
}

func compileSyncOperation(op *models.Operation) *graph.StateMachine {
	filter, _, _, execute, succeeded, failed := operationStateNames(op.Name)
	didComplete := fmt.Sprintf("Did %s Complete?", op.Name)

	sm := graph.New(filter, op.Name)
	compileHead(op, sm)

	sm.States[execute] = &graph.State{
		Type:     graph.StateTypeTask,
		Resource: op.StartHandler,
		Parameters: map[string]any{
			"operation_name": op.Name,
			"configuration":  op.Configuration.Settings,
		},
		Next:  didComplete,
		Catch: catchAll(failed),
	}

	sm.States[didComplete] = &graph.State{
		Type: graph.StateTypeChoice,
		Choices: []graph.ChoiceRule{
			{Variable: "$.status", StringEquals: string(models.OperationStatusComplete), Next: succeeded},
		},
		Default: failed,
	}

	compileTail(op, sm)

	return sm
}

func compileAsyncOperation(op *models.Operation) *graph.StateMachine {
	filter, _, _, execute, succeeded, failed := operationStateNames(op.Name)
	wait := fmt.Sprintf("Wait For %s", op.Name)
	getStatus := fmt.Sprintf("Get %s Status", op.Name)
	isDone := fmt.Sprintf("Is %s Done?", op.Name)

	sm := graph.New(filter, op.Name)
	compileHead(op, sm)

	sm.States[execute] = &graph.State{
		Type:     graph.StateTypeTask,
		Resource: op.StartHandler,
		Parameters: map[string]any{
			"operation_name": op.Name,
			"configuration":  op.Configuration.Settings,
		},
		Next:  wait,
		Catch: catchAll(failed),
	}

	sm.States[wait] = &graph.State{
		Type:    graph.StateTypeWait,
		Seconds: monitorPollSeconds,
		Next:    getStatus,
	}

	sm.States[getStatus] = &graph.State{
		Type:     graph.StateTypeTask,
		Resource: *op.MonitorHandler,
		Parameters: map[string]any{
			"operation_name": op.Name,
		},
		Next:  isDone,
		Catch: catchAll(failed),
	}

	sm.States[isDone] = &graph.State{
		Type: graph.StateTypeChoice,
		Choices: []graph.ChoiceRule{
			{Variable: "$.status", StringEquals: "executing", Next: wait},
			{Variable: "$.status", StringEquals: string(models.OperationStatusComplete), Next: succeeded},
		},
		Default: failed,
	}

	compileTail(op, sm)

	return sm
}
