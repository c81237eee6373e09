package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hexlight/docuflow/constraint"
)

// DecisionType tags inbound user decisions.
type DecisionType string

// Decision types. Retry carries the document type to re-run; the
// others are bare.
const (
	DecisionContinue DecisionType = "continue"
	DecisionStop     DecisionType = "stop"
	DecisionRetry    DecisionType = "retry"
	DecisionSkip     DecisionType = "skip"
)

// Decision is one user response to an await_decision event.
type Decision struct {
	Type    DecisionType       `json:"type"`
	DocType constraint.DocType `json:"docType,omitempty"`
}

// Validate checks that the decision is well formed. Whether a retry
// target belongs to the most recent step is the executor's call; here
// we only check the shape.
func (d Decision) Validate() error {
	switch d.Type {
	case DecisionContinue, DecisionStop, DecisionSkip:
		if d.DocType != "" {
			return fmt.Errorf("%w: %s carries a docType", ErrInvalidDecision, d.Type)
		}
		return nil
	case DecisionRetry:
		if d.DocType == "" {
			return fmt.Errorf("%w: retry without a docType", ErrInvalidDecision)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDecision, d.Type)
	}
}

// ParseDecision decodes a decision from its wire JSON and validates it.
func ParseDecision(data []byte) (Decision, error) {
	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}
	d.Type = DecisionType(strings.ToLower(strings.TrimSpace(string(d.Type))))
	if err := d.Validate(); err != nil {
		return Decision{}, err
	}
	return d, nil
}
