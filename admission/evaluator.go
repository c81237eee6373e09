package admission

import (
	"context"
	"fmt"
	"strings"

	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/project"
)

// Options carries per-request evaluation inputs.
type Options struct {
	// Mode is the enforcement mode for this request. Empty means
	// DefaultMode.
	Mode Mode

	// AdditionalAvailable lists doc types treated as present beyond
	// the inspected project state. The plan validator and executor use
	// this to simulate documents produced by earlier steps. Duplicates
	// are idempotent.
	AdditionalAvailable []constraint.DocType

	// AllowOverride permits proceeding under guided mode despite
	// missing required prerequisites. It does not change the verdict,
	// only the decision.
	AllowOverride bool
}

// normalize applies defaults.
func (o Options) normalize() Options {
	if o.Mode == "" {
		o.Mode = DefaultMode
	}
	return o
}

// Evaluator computes admission verdicts. It holds no mutable state;
// one instance serves all requests concurrently.
type Evaluator struct {
	catalog   *constraint.Catalog
	inspector project.Inspector
}

// NewEvaluator creates an Evaluator over the catalog and inspector.
func NewEvaluator(catalog *constraint.Catalog, inspector project.Inspector) *Evaluator {
	return &Evaluator{catalog: catalog, inspector: inspector}
}

// Evaluate inspects the project and computes the verdict for one
// document type. Inspector failures are returned as errors — they are
// infrastructure conditions, not admission conditions.
func (e *Evaluator) Evaluate(ctx context.Context, docType constraint.DocType, projectID int, opts Options) (*Verdict, error) {
	opts = opts.normalize()

	// Unknown types are permissive: no prerequisites to enforce, no
	// inspection needed.
	if _, ok := e.catalog.Lookup(docType); !ok {
		return e.unknownTypeVerdict(docType, opts), nil
	}

	state, err := e.inspector.Inspect(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return e.EvaluateState(state, docType, opts), nil
}

// EvaluateState computes the verdict against an already-inspected
// state. Pure: fixed catalog, state, and options produce an identical
// verdict every time.
func (e *Evaluator) EvaluateState(state *project.State, docType constraint.DocType, opts Options) *Verdict {
	opts = opts.normalize()

	con, ok := e.catalog.Lookup(docType)
	if !ok {
		return e.unknownTypeVerdict(docType, opts)
	}

	available := state.Available()
	for _, d := range opts.AdditionalAvailable {
		available[d] = true
	}

	v := &Verdict{
		DocType:            docType,
		DisplayName:        con.DisplayName,
		Mode:               opts.Mode,
		MissingRequired:    missingFrom(con.Required, available),
		MissingRecommended: missingFrom(con.Recommended, available),
		AvailableDocs:      e.availableList(state, opts.AdditionalAvailable),
	}
	v.Satisfied = len(v.MissingRequired) == 0

	if !v.Satisfied {
		v.ErrorMessage = fmt.Sprintf("Cannot generate %s. Required prerequisites missing: %s",
			con.DisplayName, e.joinDisplayNames(v.MissingRequired))
	}
	if len(v.MissingRecommended) > 0 {
		v.WarningMessage = fmt.Sprintf("Generating %s without recommended prerequisites: %s. Output quality may be affected.",
			con.DisplayName, e.joinDisplayNames(v.MissingRecommended))
	}

	v.Suggestions = e.buildSuggestions(v.MissingRequired, v.MissingRecommended)
	v.ContextPaths = e.contextPaths(con, state, available)
	return v
}

// unknownTypeVerdict is the permissive verdict for types outside the
// catalog.
func (e *Evaluator) unknownTypeVerdict(docType constraint.DocType, opts Options) *Verdict {
	return &Verdict{
		DocType:        docType,
		DisplayName:    e.catalog.DisplayName(docType),
		Satisfied:      true,
		Mode:           opts.Mode,
		WarningMessage: fmt.Sprintf("No constraints defined for document type %q", docType),
	}
}

// missingFrom returns declared − available, preserving declaration
// order for stable messages.
func missingFrom(declared []constraint.DocType, available map[constraint.DocType]bool) []constraint.DocType {
	var missing []constraint.DocType
	for _, d := range declared {
		if !available[d] {
			missing = append(missing, d)
		}
	}
	return missing
}

// availableList merges state doc types with in-plan additions, keeping
// state (catalog) order first and addition order after, deduplicated.
func (e *Evaluator) availableList(state *project.State, additional []constraint.DocType) []constraint.DocType {
	seen := make(map[constraint.DocType]bool, len(state.DocTypes)+len(additional))
	out := make([]constraint.DocType, 0, len(state.DocTypes)+len(additional))
	for _, d := range state.DocTypes {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, d := range additional {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// buildSuggestions emits remediation hints: generate+upload per missing
// required prerequisite, generate per missing recommended, in that
// order.
func (e *Evaluator) buildSuggestions(missingRequired, missingRecommended []constraint.DocType) []Suggestion {
	var out []Suggestion
	for _, d := range missingRequired {
		name := e.catalog.DisplayName(d)
		out = append(out,
			Suggestion{
				Action:       ActionGenerate,
				DocType:      d,
				DisplayName:  name,
				EndpointHint: e.endpointHint(d),
				Description:  fmt.Sprintf("Generate the missing %s before proceeding", name),
			},
			Suggestion{
				Action:      ActionUpload,
				DocType:     d,
				DisplayName: name,
				Description: fmt.Sprintf("Upload an existing %s to the project", name),
			},
		)
	}
	for _, d := range missingRecommended {
		name := e.catalog.DisplayName(d)
		out = append(out, Suggestion{
			Action:       ActionGenerate,
			DocType:      d,
			DisplayName:  name,
			EndpointHint: e.endpointHint(d),
			Description:  fmt.Sprintf("Generate %s to improve output quality", name),
		})
	}
	return out
}

// endpointHint returns the generation endpoint for a doc type's
// category, or empty when the type (and so the category) is unknown.
func (e *Evaluator) endpointHint(docType constraint.DocType) string {
	con, ok := e.catalog.Lookup(docType)
	if !ok {
		return ""
	}
	return "/generate/" + string(con.Category)
}

// contextPaths collects storage paths for every declared prerequisite
// (required, recommended, or enhancing) that is actually present,
// deduplicated in discovery order. In-plan additions carry no paths
// until their artifacts are stored.
func (e *Evaluator) contextPaths(con *constraint.Constraint, state *project.State, available map[constraint.DocType]bool) []string {
	seenType := make(map[constraint.DocType]bool)
	seenPath := make(map[string]bool)
	var paths []string

	for _, list := range [][]constraint.DocType{con.Required, con.Recommended, con.Enhances} {
		for _, d := range list {
			if seenType[d] || !available[d] {
				continue
			}
			seenType[d] = true
			if p, ok := state.Paths[d]; ok && !seenPath[p] {
				seenPath[p] = true
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// joinDisplayNames renders doc types as comma-joined display names.
func (e *Evaluator) joinDisplayNames(docTypes []constraint.DocType) string {
	names := make([]string, len(docTypes))
	for i, d := range docTypes {
		names[i] = e.catalog.DisplayName(d)
	}
	return strings.Join(names, ", ")
}
