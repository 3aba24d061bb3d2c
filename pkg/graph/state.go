// Package graph defines the typed state-machine representation submitted to
// the execution engine. Graphs are plain values: compilation builds them,
// the engine adapter serializes them, nothing mutates them after registration.
package graph

// StateType tags the behavior of a single state.
type StateType string

const (
	StateTypeTask     StateType = "Task"
	StateTypeChoice   StateType = "Choice"
	StateTypeParallel StateType = "Parallel"
	StateTypeWait     StateType = "Wait"
	StateTypeSucceed  StateType = "Succeed"
)

// ChoiceRule routes a Choice state when Variable equals StringEquals.
type ChoiceRule struct {
	Variable     string `json:"variable"`
	StringEquals string `json:"string_equals"`
	Next         string `json:"next"`
}

// Catcher routes a state's error edge to a recovery state.
type Catcher struct {
	ErrorEquals []string `json:"error_equals"`
	Next        string   `json:"next"`
	ResultPath  string   `json:"result_path,omitempty"`
}

// State is one node of a state machine. Exactly one of Next, End or the
// Choice routing fields applies, depending on Type.
type State struct {
	Type       StateType       `json:"type"`
	Resource   string          `json:"resource,omitempty"`
	Parameters map[string]any  `json:"parameters,omitempty"`
	Next       string          `json:"next,omitempty"`
	End        bool            `json:"end,omitempty"`
	Choices    []ChoiceRule    `json:"choices,omitempty"`
	Default    string          `json:"default,omitempty"`
	Branches   []*StateMachine `json:"branches,omitempty"`
	Seconds    int             `json:"seconds,omitempty"`
	Catch      []Catcher       `json:"catch,omitempty"`
}

// StateMachine is a flat map of named states plus a distinguished entry.
type StateMachine struct {
	Comment string            `json:"comment,omitempty"`
	StartAt string            `json:"start_at"`
	States  map[string]*State `json:"states"`
}

// ErrorWildcard matches any error in a Catcher.
const ErrorWildcard = "States.ALL"

// New returns an empty state machine with the given entry point and comment.
func New(startAt, comment string) *StateMachine {
	return &StateMachine{
		Comment: comment,
		StartAt: startAt,
		States:  make(map[string]*State),
	}
}

// EndState returns the name of the state carrying the End marker, or "" when
// no state ends the machine (which compilation treats as a structural defect).
// Succeed states count as terminal only when marked End; a machine built by
// the operation compiler always has exactly one End-marked state.
func (sm *StateMachine) EndState() string {
	for name, state := range sm.States {
		if state.End {
			return name
		}
	}

	return ""
}

// Clone returns a deep copy of the state machine. Compilation clones stored
// graphs before rewriting successors so persisted definitions stay pristine.
func (sm *StateMachine) Clone() *StateMachine {
	if sm == nil {
		return nil
	}

	out := New(sm.StartAt, sm.Comment)
	for name, state := range sm.States {
		out.States[name] = state.clone()
	}

	return out
}

func (s *State) clone() *State {
	cloned := *s

	if s.Parameters != nil {
		cloned.Parameters = make(map[string]any, len(s.Parameters))
		for k, v := range s.Parameters {
			cloned.Parameters[k] = v
		}
	}

	if s.Choices != nil {
		cloned.Choices = make([]ChoiceRule, len(s.Choices))
		copy(cloned.Choices, s.Choices)
	}

	if s.Catch != nil {
		cloned.Catch = make([]Catcher, len(s.Catch))
		copy(cloned.Catch, s.Catch)
	}

	if s.Branches != nil {
		cloned.Branches = make([]*StateMachine, len(s.Branches))
		for i, branch := range s.Branches {
			cloned.Branches[i] = branch.Clone()
		}
	}

	return &cloned
}
