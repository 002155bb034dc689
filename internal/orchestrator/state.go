package orchestrator

// State is the lifecycle position of one query inside a Fetch.
type State string

// Lifecycle states. Any failure returns to StateIdle before a retry;
// StateFailed is terminal.
const (
	StateIdle       State = "IDLE"
	StateRegistered State = "REGISTERED"
	StateExecuting  State = "EXECUTING"
	StatePolling    State = "POLLING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// Terminal reports whether no further transition can happen in this Fetch.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
