package manager

// State is the lifecycle state of a job.
type State string

const (
	StateSubmitting State = "submitting"
	// StateStreaming: submitted, poller running, progress stream attached.
	StateStreaming State = "streaming"
	// StatePolling: submitted, poller running, no progress stream.
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s is absorbing.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Tick is one coalesced progress update.
type Tick struct {
	// Percent is rounded to one decimal.
	Percent float64
	Value   int
	Max     int
}
