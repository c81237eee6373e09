package constraint

import "errors"

// Catalog invariant errors returned by Load.
var (
	ErrDuplicateDocType   = errors.New("duplicate document type")
	ErrMissingDisplayName = errors.New("missing display name")
	ErrInvalidPhase       = errors.New("phase out of range")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrEntryPointMismatch = errors.New("entry-point tag disagrees with required list")
	ErrSelfReference      = errors.New("self-referencing prerequisite")
	ErrUnknownReference   = errors.New("reference to unknown document type")
	ErrConflictingLists   = errors.New("document type in conflicting prerequisite lists")
	ErrRequiredCycle      = errors.New("cycle in required prerequisites")
)
