package models

import "time"

// WorkflowTrigger records how executions of a workflow are initiated.
type WorkflowTrigger string

const (
	WorkflowTriggerAPI            WorkflowTrigger = "api"
	WorkflowTriggerCustomResource WorkflowTrigger = "custom-resource"
)

// StageRef is one link of a workflow's stage chain. Exactly one of Next or
// End applies; the compiler rejects a stage reference carrying both or
// neither.
type StageRef struct {
	Next *string `json:"next,omitempty"`
	End  bool    `json:"end,omitempty"`
}

// Workflow is a named sequential chain of stages. The compiled graph lives on
// the engine side behind ExecutableHandle; the store keeps only the
// declarative definition plus derived dependency data.
type Workflow struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"     validate:"required,min=3"`
	StartAt string              `json:"start_at" validate:"required"`
	Stages  map[string]StageRef `json:"stages"   validate:"required,min=1"`

	// Operations is the flattened list of operation names reachable through
	// the stage chain, denormalized for reverse-dependency queries.
	Operations []string `json:"operations,omitempty"`

	// StaleOperations and StaleStages are advisory markers set when a
	// referenced definition is force-deleted after compilation. The compiled
	// graph keeps running; the markers flag that a re-compile will fail.
	StaleOperations []string `json:"stale_operations,omitempty"`
	StaleStages     []string `json:"stale_stages,omitempty"`

	ExecutableHandle string          `json:"executable_handle,omitempty"`
	Revisions        int             `json:"revisions"`
	Trigger          WorkflowTrigger `json:"trigger"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
}

// StageOrder walks the chain from StartAt and returns stage names in
// declared order. The slice is only meaningful for a workflow that already
// passed compilation; a broken chain yields a truncated slice.
func (w *Workflow) StageOrder() []string {
	order := make([]string, 0, len(w.Stages))
	seen := make(map[string]bool, len(w.Stages))

	for name := w.StartAt; name != "" && !seen[name]; {
		ref, ok := w.Stages[name]
		if !ok {
			break
		}

		order = append(order, name)
		seen[name] = true

		if ref.Next == nil {
			break
		}

		name = *ref.Next
	}

	return order
}
