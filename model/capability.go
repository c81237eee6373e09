// Package model resolves document generation work to LLM models.
// Components specify capabilities (planning, design, diagram) rather
// than model names; the registry maps capabilities to preference
// chains and tracks endpoint health for fallback.
package model

import "github.com/hexlight/docuflow/constraint"

// Capability is a semantic class of generation work.
type Capability string

const (
	// CapabilityPlanning covers early project documents: charters,
	// business cases, scope statements.
	CapabilityPlanning Capability = "planning"

	// CapabilityAnalysis covers requirements elaboration: user
	// stories, use cases, functional requirements.
	CapabilityAnalysis Capability = "analysis"

	// CapabilityDesign covers architecture and design documents.
	CapabilityDesign Capability = "design"

	// CapabilitySpecification covers large assembled specifications
	// that need a big context window.
	CapabilitySpecification Capability = "specification"

	// CapabilityDiagram covers diagram source generation (PlantUML,
	// Mermaid).
	CapabilityDiagram Capability = "diagram"

	// CapabilityFast covers short auxiliary tasks.
	CapabilityFast Capability = "fast"
)

// CategoryCapabilities maps document categories to their default
// capability.
var CategoryCapabilities = map[constraint.Category]Capability{
	constraint.CategoryPlanning: CapabilityPlanning,
	constraint.CategoryAnalysis: CapabilityAnalysis,
	constraint.CategoryDesign:   CapabilityDesign,
	constraint.CategorySRS:      CapabilitySpecification,
	constraint.CategoryDiagram:  CapabilityDiagram,
}

// CapabilityForCategory returns the capability used to generate
// documents of a category. Unknown categories fall back to planning.
func CapabilityForCategory(cat constraint.Category) Capability {
	if c, ok := CategoryCapabilities[cat]; ok {
		return c
	}
	return CapabilityPlanning
}

// IsValid reports whether the capability is known.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityAnalysis, CapabilityDesign,
		CapabilitySpecification, CapabilityDiagram, CapabilityFast:
		return true
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty
// for unknown values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
