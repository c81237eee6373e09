package admission

import "github.com/hexlight/docuflow/constraint"

// SuggestionAction is the kind of remediation a suggestion proposes.
type SuggestionAction string

const (
	// ActionGenerate proposes generating the missing prerequisite.
	ActionGenerate SuggestionAction = "generate"

	// ActionUpload proposes uploading an existing document.
	ActionUpload SuggestionAction = "upload"

	// ActionOverride proposes proceeding anyway under guided mode.
	ActionOverride SuggestionAction = "override"
)

// Suggestion is an actionable hint derived from a missing prerequisite.
type Suggestion struct {
	Action       SuggestionAction   `json:"action"`
	DocType      constraint.DocType `json:"docType"`
	DisplayName  string             `json:"displayName"`
	EndpointHint string             `json:"endpointHint,omitempty"`
	Description  string             `json:"description"`
}

// Verdict is the immutable result of one admission evaluation. It never
// encodes the proceed/block decision itself; Decide applies the mode.
type Verdict struct {
	DocType            constraint.DocType   `json:"docType"`
	DisplayName        string               `json:"displayName"`
	Satisfied          bool                 `json:"satisfied"`
	Mode               Mode                 `json:"mode"`
	MissingRequired    []constraint.DocType `json:"missingRequired"`
	MissingRecommended []constraint.DocType `json:"missingRecommended"`
	AvailableDocs      []constraint.DocType `json:"availableDocs"`
	ContextPaths       []string             `json:"contextPaths"`
	Suggestions        []Suggestion         `json:"suggestions"`
	ErrorMessage       string               `json:"errorMessage,omitempty"`
	WarningMessage     string               `json:"warningMessage,omitempty"`
}

// Decide applies the verdict's enforcement mode and returns true when
// generation may proceed.
func Decide(v *Verdict, allowOverride bool) bool {
	switch v.Mode {
	case ModeStrict:
		return v.Satisfied
	case ModePermissive:
		return true
	default: // guided
		return v.Satisfied || allowOverride
	}
}
