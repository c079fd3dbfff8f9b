package session

// State is one step of a recording session's lifecycle.
type State string

const (
	StateCreated   State = "created"
	StateJoining   State = "joining"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateError
}

// CanTransition reports whether moving from s to next is legal.
// StateError is reachable from any non-terminal state; everything else
// follows created -> joining -> recording -> stopping -> stopped.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateError {
		return true
	}

	switch s {
	case StateCreated:
		return next == StateJoining
	case StateJoining:
		return next == StateRecording
	case StateRecording:
		return next == StateStopping || next == StateStopped
	case StateStopping:
		return next == StateStopped
	default:
		return false
	}
}
