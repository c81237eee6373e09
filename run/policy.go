package run

import "time"

// FailurePolicy selects how a step reacts to a document failure.
type FailurePolicy string

const (
	// AbortStep stops the current step at the first document failure.
	// Remaining documents in the step are not attempted.
	AbortStep FailurePolicy = "abort-step"

	// ContinueStep attempts every document in the step regardless of
	// earlier failures within it.
	ContinueStep FailurePolicy = "continue-step"
)

// Policy tunes executor behavior per run.
type Policy struct {
	// OnDocFailure is applied when a document is denied admission or
	// its generation fails. Defaults to AbortStep.
	OnDocFailure FailurePolicy

	// GateAfterFinalStep asks for a decision after the last step too,
	// instead of completing immediately.
	GateAfterFinalStep bool

	// DecisionTimeout bounds how long the executor waits at a gate.
	// Zero waits indefinitely. A timed-out gate resolves to stop.
	DecisionTimeout time.Duration
}

// normalize applies defaults.
func (p Policy) normalize() Policy {
	if p.OnDocFailure == "" {
		p.OnDocFailure = AbortStep
	}
	return p
}
