package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/mediaflux/mediaflux/pkg/graph"
)

// Fake is an in-memory Engine for tests. It records registrations and
// started instances; history is seeded by the test.
type Fake struct {
	mu sync.Mutex

	definitions map[string]*graph.StateMachine
	started     []FakeInstance
	histories   map[string][]HistoryEvent

	// StartErr, when set, fails the next StartInstance call.
	StartErr error
}

// FakeInstance records one StartInstance call.
type FakeInstance struct {
	Handle string
	RunID  string
	Input  map[string]any
}

func NewFake() *Fake {
	return &Fake{
		definitions: make(map[string]*graph.StateMachine),
		histories:   make(map[string][]HistoryEvent),
	}
}

func (f *Fake) CompileAndRegister(_ context.Context, name string, sm *graph.StateMachine) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	handle := "executable:" + name
	f.definitions[handle] = sm

	return handle, nil
}

func (f *Fake) StartInstance(_ context.Context, handle, runID string, input map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StartErr != nil {
		err := f.StartErr
		f.StartErr = nil

		return "", err
	}

	if _, ok := f.definitions[handle]; !ok {
		return "", fmt.Errorf("unknown executable handle %q", handle)
	}

	f.started = append(f.started, FakeInstance{Handle: handle, RunID: runID, Input: input})

	return "execution:" + runID, nil
}

func (f *Fake) UpdateDefinition(_ context.Context, handle string, sm *graph.StateMachine) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.definitions[handle]; !ok {
		return fmt.Errorf("unknown executable handle %q", handle)
	}

	f.definitions[handle] = sm

	return nil
}

func (f *Fake) DeleteInstance(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.definitions, handle)

	return nil
}

func (f *Fake) GetHistory(_ context.Context, executionRef string, pageSize int, reverse bool) ([]HistoryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	history := f.histories[executionRef]
	if pageSize > 0 && pageSize < len(history) {
		history = history[:pageSize]
	}

	if reverse {
		reversed := make([]HistoryEvent, len(history))
		for i, event := range history {
			reversed[len(history)-1-i] = event
		}

		return reversed, nil
	}

	return append([]HistoryEvent(nil), history...), nil
}

// SeedHistory sets the history returned for an execution reference.
func (f *Fake) SeedHistory(executionRef string, history []HistoryEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.histories[executionRef] = history
}

// Started returns the recorded StartInstance calls.
func (f *Fake) Started() []FakeInstance {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]FakeInstance(nil), f.started...)
}

// Definition returns the registered graph behind a handle.
func (f *Fake) Definition(handle string) *graph.StateMachine {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.definitions[handle]
}
