package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *StateMachine {
	sm := New("First", "sample")
	sm.States["First"] = &State{
		Type:       StateTypeTask,
		Resource:   "operator:start",
		Parameters: map[string]any{"key": "value"},
		Next:       "Decide",
		Catch:      []Catcher{{ErrorEquals: []string{ErrorWildcard}, Next: "Last"}},
	}
	sm.States["Decide"] = &State{
		Type:    StateTypeChoice,
		Choices: []ChoiceRule{{Variable: "$.status", StringEquals: "complete", Next: "Last"}},
		Default: "Last",
	}
	sm.States["Last"] = &State{Type: StateTypeTask, Resource: "operator:end", End: true}

	return sm
}

func TestClone_DeepCopy(t *testing.T) {
	original := sample()
	cloned := original.Clone()

	require.Equal(t, original, cloned)

	cloned.States["First"].Parameters["key"] = "changed"
	cloned.States["First"].Next = "Elsewhere"
	cloned.States["Decide"].Choices[0].Next = "Elsewhere"

	assert.Equal(t, "value", original.States["First"].Parameters["key"])
	assert.Equal(t, "Decide", original.States["First"].Next)
	assert.Equal(t, "Last", original.States["Decide"].Choices[0].Next)
}

func TestEndState(t *testing.T) {
	sm := sample()
	assert.Equal(t, "Last", sm.EndState())

	sm.States["Last"].End = false
	assert.Empty(t, sm.EndState())
}

func TestPrefix(t *testing.T) {
	prefixed := Prefix(sample(), "ingest")

	assert.Equal(t, "ingest First", prefixed.StartAt)

	first := prefixed.States["ingest First"]
	require.NotNil(t, first)
	assert.Equal(t, "ingest Decide", first.Next)
	assert.Equal(t, "ingest Last", first.Catch[0].Next)

	decide := prefixed.States["ingest Decide"]
	require.NotNil(t, decide)
	assert.Equal(t, "ingest Last", decide.Choices[0].Next)
	assert.Equal(t, "ingest Last", decide.Default)

	// End markers and empty references survive untouched.
	assert.True(t, prefixed.States["ingest Last"].End)
	assert.Empty(t, prefixed.States["ingest Last"].Next)
}

func TestPrefix_Branches(t *testing.T) {
	sm := New("Outer", "parallel")
	sm.States["Outer"] = &State{
		Type:     StateTypeParallel,
		Branches: []*StateMachine{sample()},
		End:      true,
	}

	prefixed := Prefix(sm, "stage")

	branch := prefixed.States["stage Outer"].Branches[0]
	assert.Equal(t, "stage First", branch.StartAt)
	assert.Contains(t, branch.States, "stage Last")
}
