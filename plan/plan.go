// Package plan defines multi-step generation plans and validates them
// up front by forward-simulating what each step produces. Validating
// the whole plan before any generation lets callers present every
// structural problem at once instead of failing mid-run.
package plan

import (
	"errors"
	"fmt"

	"github.com/hexlight/docuflow/constraint"
)

// Plan shape errors.
var (
	ErrNoSteps    = errors.New("plan has no steps")
	ErrEmptyStep  = errors.New("step has no documents")
	ErrEmptyType  = errors.New("document request has no type")
	ErrBadProject = errors.New("project id must be positive")
)

// DocRequest is one document to generate within a step, with the user
// message passed through to the generator.
type DocRequest struct {
	Type    constraint.DocType `json:"type"`
	Message string             `json:"message,omitempty"`
}

// Step is an ordered group of documents generated together. Documents
// within a step may not depend on each other; prerequisites are
// defined by the step boundary.
type Step struct {
	Docs []DocRequest `json:"docTypes"`
}

// DocTypes returns the step's document types in declaration order.
func (s Step) DocTypes() []constraint.DocType {
	out := make([]constraint.DocType, len(s.Docs))
	for i, d := range s.Docs {
		out[i] = d.Type
	}
	return out
}

// Plan is an ordered sequence of steps bound to one project. Plans are
// session-scoped values; nothing here persists across restarts.
type Plan struct {
	ProjectID int    `json:"projectId"`
	Steps     []Step `json:"steps"`
}

// CheckShape validates the structural shape of a plan before any
// admission evaluation happens.
func (p *Plan) CheckShape() error {
	if p.ProjectID <= 0 {
		return fmt.Errorf("%w: %d", ErrBadProject, p.ProjectID)
	}
	if len(p.Steps) == 0 {
		return ErrNoSteps
	}
	for i, step := range p.Steps {
		if len(step.Docs) == 0 {
			return fmt.Errorf("step %d: %w", i+1, ErrEmptyStep)
		}
		for j, doc := range step.Docs {
			if doc.Type == "" {
				return fmt.Errorf("step %d doc %d: %w", i+1, j+1, ErrEmptyType)
			}
		}
	}
	return nil
}

// TotalDocs counts every document request across all steps.
func (p *Plan) TotalDocs() int {
	n := 0
	for _, s := range p.Steps {
		n += len(s.Docs)
	}
	return n
}
