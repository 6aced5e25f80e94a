package signer

// State is the progress of one signing call
type State int

const (
	StateIdle State = iota
	StateResolving
	StateQueued
	StateAwaitingDevice
	StateValidating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateQueued:
		return "queued"
	case StateAwaitingDevice:
		return "awaiting_device"
	case StateValidating:
		return "validating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition is reported to a Listener for every state change
type Transition struct {
	RequestID string
	Kind      Kind
	State     State
	Err       error
}

// Listener observes signing progress. It is called synchronously and must not block.
type Listener func(Transition)
