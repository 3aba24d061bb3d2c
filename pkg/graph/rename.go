package graph

// Prefix returns a copy of the state machine with every state name and every
// internal reference prefixed by the owning stage name. The same operation
// compiled into two different stages therefore never produces colliding
// state names in a merged workflow graph.
func Prefix(sm *StateMachine, stageName string) *StateMachine {
	if sm == nil || stageName == "" {
		return sm.Clone()
	}

	rename := func(name string) string {
		if name == "" {
			return ""
		}

		return stageName + " " + name
	}

	out := New(rename(sm.StartAt), sm.Comment)

	for name, state := range sm.States {
		renamed := state.clone()
		renamed.Next = rename(state.Next)
		renamed.Default = rename(state.Default)

		for i := range renamed.Choices {
			renamed.Choices[i].Next = rename(renamed.Choices[i].Next)
		}

		for i := range renamed.Catch {
			renamed.Catch[i].Next = rename(renamed.Catch[i].Next)
		}

		for i, branch := range renamed.Branches {
			renamed.Branches[i] = Prefix(branch, stageName)
		}

		out.States[rename(name)] = renamed
	}

	return out
}
