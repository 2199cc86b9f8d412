package task

// State is the lifecycle state of a task node.
type State int

const (
	// StatePending means no subtask body has started yet
	StatePending State = iota
	// StateRunning means at least one subtask body has started
	StateRunning
	// StatePaused means a pause command was observed at a checkpoint
	StatePaused
	// StateCancelling means a cancel was issued and in-flight work has not
	// finished unwinding yet
	StateCancelling
	// StateCompleted means every declared subtask reached full progress and
	// every spawned body returned without error (terminal)
	StateCompleted
	// StateCancelled means all in-flight work acknowledged the cancel (terminal)
	StateCancelled
	// StateFailed means a subtask body returned a non-cancellation error (terminal)
	StateFailed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCancelling:
		return "cancelling"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}
