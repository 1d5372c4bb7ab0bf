package core

// Job states.
const (
	StateAvailable = "available"
	StateLocked    = "locked"
	StateRetryable = "retryable"
	StateExhausted = "exhausted"
)

// validTransitions defines the allowed state transitions. The retry strategy
// only ever moves a job out of "locked"; acquisition moves it back in.
var validTransitions = map[string][]string{
	StateAvailable: {StateLocked},
	StateLocked:    {StateAvailable, StateRetryable, StateExhausted},
	StateRetryable: {StateAvailable},
	StateExhausted: {},
}

// IsValidTransition checks if a state transition is allowed.
func IsValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminalState returns true if the retry strategy will never touch the
// job again. Escalation of exhausted jobs is the engine's concern, not ours.
func IsTerminalState(state string) bool {
	return state == StateExhausted
}
