package task

// State is the lifecycle state of a task.
type State int32

const (
	// StateScheduled is a spawned task waiting for the runner to start it.
	StateScheduled State = iota
	// StateRunning is a task executing its body.
	StateRunning
	// StateSuspended is a task waiting at a suspension point.
	StateSuspended
	// StateCompleted is a finished task. Its result may carry a failure.
	StateCompleted
	// StateCancelled is a task that observed cancellation and unwound.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Finished reports whether s is terminal.
func (s State) Finished() bool {
	return s == StateCompleted || s == StateCancelled
}
