package orchestrator

// State names a position in the turn pipeline. Every turn walks a single
// path from StateReceived to StateLogged; StateError is reachable from any
// processing state.
type State string

const (
	StateReceived        State = "received"
	StateInputModerated  State = "input_moderated"
	StateBlockedInput    State = "blocked_input"
	StateRetrieving      State = "retrieving"
	StateGenerating      State = "generating"
	StateOutputModerated State = "output_moderated"
	StateBlockedOutput   State = "blocked_output"
	StateServed          State = "served"
	StateError           State = "error"
	StateLogged          State = "logged"
)

func (s State) String() string { return string(s) }
