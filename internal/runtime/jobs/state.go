package jobs

// State is a position in the job lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateSubmitted
	StatePolling
	StateSucceeded
	StateFailed
	// StateAbandoned is entered when the caller cancels before a terminal
	// status arrives.
	StateAbandoned
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateSubmitted: "submitted",
	StatePolling:   "polling",
	StateSucceeded: "succeeded",
	StateFailed:    "failed",
	StateAbandoned: "abandoned",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateAbandoned:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateSubmitted || to == StateFailed || to == StateAbandoned
	case StateSubmitted:
		return to == StatePolling || to == StateAbandoned
	case StatePolling:
		return to == StateSucceeded || to == StateFailed || to == StateAbandoned
	default:
		return false
	}
}
