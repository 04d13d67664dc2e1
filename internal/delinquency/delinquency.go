// Package delinquency decides when a validator's liveness failure warrants an
// alert. A validator alerts once per episode: the first delinquent
// observation raises the alert, every following one is suppressed until the
// validator has been seen healthy again.
package delinquency

import "fmt"

// State of a validator's delinquency alerting.
type State string

const (
	// StateClear means the validator is not inside an alerted episode.
	StateClear State = "clear"
	// StateAlerted means an alert went out and the episode is still open.
	StateAlerted State = "alerted"
)

// ParseState validates a state read back from storage.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateClear, StateAlerted:
		return State(s), nil
	}
	return "", fmt.Errorf("unknown delinquency state %q", s)
}

// Decision is the outcome of applying one observation to a state.
type Decision struct {
	// Next is the state after the observation.
	Next State
	// Alert is true only on the clear→alerted edge.
	Alert bool
	// Changed reports whether Next differs from the prior state, i.e.
	// whether the caller has a transition to persist.
	Changed bool
}

// Step applies a single delinquent observation. It is pure; persisting the
// transition (and racing other ticks for it) is the caller's concern.
func Step(current State, delinquent bool) Decision {
	switch {
	case current == StateClear && delinquent:
		return Decision{Next: StateAlerted, Alert: true, Changed: true}
	case current == StateAlerted && !delinquent:
		return Decision{Next: StateClear, Changed: true}
	default:
		return Decision{Next: current}
	}
}
