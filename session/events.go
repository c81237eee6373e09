// Package session carries the event and decision channel that connects
// a plan run to its user. Events and decisions are closed sets encoded
// as tagged variants; transports (JetStream, in-process) live behind
// the Channel interface.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/constraint"
)

// EventType tags outbound run events.
type EventType string

// Run event types. The emitted sequence always matches
// (step_start (doc_start doc_progress* (doc_completed|doc_failed))+
// (step_completed|step_failed) await_decision?)* terminal.
const (
	EventStepStart     EventType = "step_start"
	EventDocStart      EventType = "doc_start"
	EventDocProgress   EventType = "doc_progress"
	EventDocCompleted  EventType = "doc_completed"
	EventDocFailed     EventType = "doc_failed"
	EventStepCompleted EventType = "step_completed"
	EventStepFailed    EventType = "step_failed"
	EventAwaitDecision EventType = "await_decision"
	EventRunCompleted  EventType = "run_completed"
	EventRunStopped    EventType = "run_stopped"
	EventRunCancelled  EventType = "run_cancelled"
	EventRunFailed     EventType = "run_failed"
)

// Event is one outbound run event. The concrete type determines the
// wire tag; the compiler checks exhaustiveness wherever a switch over
// variants returns.
type Event interface {
	EventType() EventType
}

// StepStart opens step Index of Total. Indices are 1-based.
type StepStart struct {
	Index int `json:"index"`
	Total int `json:"total"`
}

// DocStart announces generation of one document within a step.
type DocStart struct {
	DocType     constraint.DocType `json:"docType"`
	DisplayName string             `json:"displayName"`
}

// DocProgress relays generator progress, 0..100.
type DocProgress struct {
	DocType constraint.DocType `json:"docType"`
	Percent int                `json:"percent"`
}

// DocCompleted reports a stored artifact.
type DocCompleted struct {
	DocType     constraint.DocType `json:"docType"`
	ArtifactID  string             `json:"artifactId"`
	StoragePath string             `json:"storagePath"`
}

// DocFailed reports a per-document failure: either a denied admission
// (Verdict set) or a generator error.
type DocFailed struct {
	DocType constraint.DocType `json:"docType"`
	Reason  string             `json:"reason"`
	Verdict *admission.Verdict `json:"verdict,omitempty"`
}

// StepCompleted closes a step with every document stored.
type StepCompleted struct {
	Index int `json:"index"`
}

// StepFailed closes a step that had at least one document failure.
type StepFailed struct {
	Index   int    `json:"index"`
	Summary string `json:"summary"`
}

// AwaitDecision asks the user whether to proceed to step NextIndex. At
// most one AwaitDecision is outstanding at a time.
type AwaitDecision struct {
	NextIndex int `json:"nextIndex"`
}

// RunCompleted, RunStopped, RunCancelled, and RunFailed terminate the
// event stream. Exactly one terminal event ends every run.
type RunCompleted struct{}

// RunStopped reports a graceful stop requested by the user (or a
// decision timeout resolving to stop).
type RunStopped struct {
	Reason string `json:"reason,omitempty"`
}

// RunCancelled reports an external cancellation.
type RunCancelled struct {
	Reason string `json:"reason,omitempty"`
}

// RunFailed reports a fatal run error.
type RunFailed struct {
	Reason string `json:"reason"`
}

// EventType implementations.
func (StepStart) EventType() EventType     { return EventStepStart }
func (DocStart) EventType() EventType      { return EventDocStart }
func (DocProgress) EventType() EventType   { return EventDocProgress }
func (DocCompleted) EventType() EventType  { return EventDocCompleted }
func (DocFailed) EventType() EventType     { return EventDocFailed }
func (StepCompleted) EventType() EventType { return EventStepCompleted }
func (StepFailed) EventType() EventType    { return EventStepFailed }
func (AwaitDecision) EventType() EventType { return EventAwaitDecision }
func (RunCompleted) EventType() EventType  { return EventRunCompleted }
func (RunStopped) EventType() EventType    { return EventRunStopped }
func (RunCancelled) EventType() EventType  { return EventRunCancelled }
func (RunFailed) EventType() EventType     { return EventRunFailed }

// Envelope is the wire form of an event.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEvent wraps an event into its envelope JSON.
func EncodeEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.EventType(), err)
	}
	return json.Marshal(Envelope{Type: e.EventType(), Payload: payload})
}

// DecodeEvent parses an envelope back into its typed event.
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	decode := func(target Event) (Event, error) {
		if len(env.Payload) == 0 {
			return target, nil
		}
		if err := json.Unmarshal(env.Payload, target); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
		return target, nil
	}

	switch env.Type {
	case EventStepStart:
		return decode(&StepStart{})
	case EventDocStart:
		return decode(&DocStart{})
	case EventDocProgress:
		return decode(&DocProgress{})
	case EventDocCompleted:
		return decode(&DocCompleted{})
	case EventDocFailed:
		return decode(&DocFailed{})
	case EventStepCompleted:
		return decode(&StepCompleted{})
	case EventStepFailed:
		return decode(&StepFailed{})
	case EventAwaitDecision:
		return decode(&AwaitDecision{})
	case EventRunCompleted:
		return decode(&RunCompleted{})
	case EventRunStopped:
		return decode(&RunStopped{})
	case EventRunCancelled:
		return decode(&RunCancelled{})
	case EventRunFailed:
		return decode(&RunFailed{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

// IsTerminal reports whether the event ends the run.
func IsTerminal(e Event) bool {
	switch e.EventType() {
	case EventRunCompleted, EventRunStopped, EventRunCancelled, EventRunFailed:
		return true
	}
	return false
}
