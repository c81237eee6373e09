// Package constraint provides the static document constraint catalog.
// Each document type declares the prerequisite artifacts that must
// (required) or should (recommended) exist in a project before it is
// generated, plus enhancing artifacts that improve generation context
// without ever gating it.
package constraint

import (
	"fmt"
	"strings"
)

// DocType identifies a document kind. The set of valid values is closed
// and defined by the catalog tables (lowercase, hyphenated).
type DocType string

// String returns the identifier.
func (d DocType) String() string { return string(d) }

// Category groups document types by the kind of artifact they produce.
type Category string

// Document categories. Closed set; each maps to a generation endpoint.
const (
	CategoryPlanning Category = "planning"
	CategoryAnalysis Category = "analysis"
	CategoryDesign   Category = "design"
	CategorySRS      Category = "srs"
	CategoryDiagram  Category = "diagram"
)

// IsValid checks whether the category is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPlanning, CategoryAnalysis, CategoryDesign, CategorySRS, CategoryDiagram:
		return true
	}
	return false
}

// Constraint holds the catalog metadata for one document type.
type Constraint struct {
	// Type is the document type this constraint applies to.
	Type DocType

	// DisplayName is the human-readable label used in messages.
	DisplayName string

	// Phase is the SDLC phase (1..9) the document belongs to.
	Phase int

	// Category selects the generation endpoint family.
	Category Category

	// Required lists prerequisites that must exist before generation.
	// Declaration order is preserved in messages and suggestions.
	Required []DocType

	// Recommended lists prerequisites that should exist. Missing
	// recommended prerequisites warn but never block.
	Recommended []DocType

	// Enhances lists documents that enrich generation context when
	// present. Enhancing documents never block and never warn.
	Enhances []DocType

	// EntryPoint marks documents that can always be generated first.
	// Must agree with Required being empty.
	EntryPoint bool
}

// Variant selects which catalog table edition to load.
type Variant string

const (
	// VariantEnhanced is the edition whose tables carry enhancing
	// prerequisites. This is the default.
	VariantEnhanced Variant = "enhanced"

	// VariantCurrent is the edition that dropped enhancing
	// prerequisites from the dependency tables. The field remains in
	// the schema but every list is empty.
	VariantCurrent Variant = "current"
)

// Catalog is the immutable document constraint registry. Construct one
// with Load at startup and share it by reference; it is safe for
// concurrent reads.
type Catalog struct {
	constraints map[DocType]*Constraint
	order       []DocType
}

// Load builds the catalog for the given variant and verifies its
// invariants. An unknown variant falls back to VariantEnhanced.
func Load(variant Variant) (*Catalog, error) {
	return newCatalog(catalogTable, variant)
}

func newCatalog(table []Constraint, variant Variant) (*Catalog, error) {
	c := &Catalog{
		constraints: make(map[DocType]*Constraint, len(table)),
		order:       make([]DocType, 0, len(table)),
	}

	for i := range table {
		entry := table[i] // copy; the package-level table stays pristine
		if variant == VariantCurrent {
			entry.Enhances = nil
		}
		if _, exists := c.constraints[entry.Type]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDocType, entry.Type)
		}
		c.constraints[entry.Type] = &entry
		c.order = append(c.order, entry.Type)
	}

	if err := c.verify(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustLoad is Load for static initialization paths where the compiled-in
// tables are known to be valid. Panics on invariant violation.
func MustLoad(variant Variant) *Catalog {
	c, err := Load(variant)
	if err != nil {
		panic(fmt.Sprintf("constraint: invalid catalog table: %v", err))
	}
	return c
}

// Lookup returns the constraint for a document type, or false when the
// type is not in the catalog. Callers treat unknown types permissively.
func (c *Catalog) Lookup(docType DocType) (*Constraint, bool) {
	con, ok := c.constraints[docType]
	return con, ok
}

// Contains reports whether the document type is in the catalog.
func (c *Catalog) Contains(docType DocType) bool {
	_, ok := c.constraints[docType]
	return ok
}

// IsEntryPoint reports whether the document type can be generated with
// no prior artifacts.
func (c *Catalog) IsEntryPoint(docType DocType) bool {
	con, ok := c.constraints[docType]
	return ok && con.EntryPoint
}

// DisplayName returns the human label for a document type. Unknown
// types fall back to title-casing the hyphen-split identifier.
func (c *Catalog) DisplayName(docType DocType) string {
	if con, ok := c.constraints[docType]; ok {
		return con.DisplayName
	}
	return fallbackDisplayName(docType)
}

// DocTypes returns every catalog document type in table order.
func (c *Catalog) DocTypes() []DocType {
	out := make([]DocType, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.order) }

// fallbackDisplayName title-cases a hyphenated identifier:
// "custom-doc" becomes "Custom Doc".
func fallbackDisplayName(docType DocType) string {
	parts := strings.Split(string(docType), "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// verify checks the catalog invariants: every referenced type is known,
// no self-references, entry-point tagging agrees with empty required
// lists, no type appears in both required and recommended of the same
// parent, and the required graph is acyclic.
func (c *Catalog) verify() error {
	for _, docType := range c.order {
		con := c.constraints[docType]

		if con.DisplayName == "" {
			return fmt.Errorf("%s: %w", docType, ErrMissingDisplayName)
		}
		if con.Phase < 1 || con.Phase > 9 {
			return fmt.Errorf("%s: %w: %d", docType, ErrInvalidPhase, con.Phase)
		}
		if !con.Category.IsValid() {
			return fmt.Errorf("%s: %w: %s", docType, ErrInvalidCategory, con.Category)
		}
		if con.EntryPoint != (len(con.Required) == 0) {
			return fmt.Errorf("%s: %w", docType, ErrEntryPointMismatch)
		}

		seen := make(map[DocType]string)
		for listName, list := range map[string][]DocType{
			"required":    con.Required,
			"recommended": con.Recommended,
			"enhances":    con.Enhances,
		} {
			for _, dep := range list {
				if dep == docType {
					return fmt.Errorf("%s: %w in %s", docType, ErrSelfReference, listName)
				}
				if _, ok := c.constraints[dep]; !ok {
					return fmt.Errorf("%s: %w: %s in %s", docType, ErrUnknownReference, dep, listName)
				}
				if prev, dup := seen[dep]; dup && prev != listName && listName != "enhances" && prev != "enhances" {
					return fmt.Errorf("%s: %w: %s in both %s and %s", docType, ErrConflictingLists, dep, prev, listName)
				}
				seen[dep] = listName
			}
		}
	}

	return c.verifyAcyclic()
}

// verifyAcyclic runs a three-color DFS over the required graph.
func (c *Catalog) verifyAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[DocType]int, len(c.order))

	var visit func(DocType) error
	visit = func(d DocType) error {
		color[d] = gray
		for _, dep := range c.constraints[d].Required {
			switch color[dep] {
			case gray:
				return fmt.Errorf("%w: %s -> %s", ErrRequiredCycle, d, dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[d] = black
		return nil
	}

	for _, d := range c.order {
		if color[d] == white {
			if err := visit(d); err != nil {
				return err
			}
		}
	}
	return nil
}
