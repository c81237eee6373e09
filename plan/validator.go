package plan

import (
	"context"
	"fmt"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/project"
)

// Failure is one admission failure found during validation. StepIndex
// is 1-based to match the step numbering in executor events.
type Failure struct {
	StepIndex       int                  `json:"stepIndex"`
	DocType         constraint.DocType   `json:"docType"`
	MissingRequired []constraint.DocType `json:"missingRequired"`
	ErrorMessage    string               `json:"errorMessage"`
}

// Result is the outcome of validating a whole plan.
type Result struct {
	OK       bool      `json:"ok"`
	Failures []Failure `json:"failures,omitempty"`
}

// Validator checks plans against the admission rules, simulating the
// artifacts each step would produce.
type Validator struct {
	evaluator *admission.Evaluator
	inspector project.Inspector
}

// NewValidator creates a Validator.
func NewValidator(evaluator *admission.Evaluator, inspector project.Inspector) *Validator {
	return &Validator{evaluator: evaluator, inspector: inspector}
}

// Validate walks the plan in order, evaluating every document against
// the project state plus everything earlier steps would have produced.
// A step's doc types join the simulated set even when the step has
// failures, so the report covers all structural problems rather than
// the first one.
//
// The project is inspected exactly once; the snapshot is scoped to
// this validation and discarded with it.
func (v *Validator) Validate(ctx context.Context, p *Plan, opts admission.Options) (*Result, error) {
	if err := p.CheckShape(); err != nil {
		return nil, err
	}

	state, err := v.inspector.Inspect(ctx, p.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}

	var (
		result    = &Result{OK: true}
		generated []constraint.DocType
		inSet     = make(map[constraint.DocType]bool)
	)

	for i, step := range p.Steps {
		stepOpts := opts
		stepOpts.AdditionalAvailable = generated

		for _, doc := range step.Docs {
			verdict := v.evaluator.EvaluateState(state, doc.Type, stepOpts)
			if !admission.Decide(verdict, opts.AllowOverride) {
				result.OK = false
				result.Failures = append(result.Failures, Failure{
					StepIndex:       i + 1,
					DocType:         doc.Type,
					MissingRequired: verdict.MissingRequired,
					ErrorMessage:    verdict.ErrorMessage,
				})
			}
		}

		// The step's products become available to later steps whether
		// or not the step itself had failures.
		for _, d := range step.DocTypes() {
			if !inSet[d] {
				inSet[d] = true
				generated = append(generated, d)
			}
		}
	}

	return result, nil
}
