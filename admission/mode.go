// Package admission decides whether document generation may proceed.
// The evaluator computes a pure AdmissionVerdict from the constraint
// catalog and the project's derived state; applying an enforcement mode
// to a verdict is a separate one-line decision so callers can present
// the full verdict either way.
package admission

import "strings"

// Mode is the enforcement strictness applied to missing required
// prerequisites.
type Mode string

const (
	// ModeStrict blocks whenever a required prerequisite is missing.
	ModeStrict Mode = "STRICT"

	// ModeGuided blocks like strict but honors an explicit override.
	ModeGuided Mode = "GUIDED"

	// ModePermissive never blocks; violations are reported only.
	ModePermissive Mode = "PERMISSIVE"
)

// DefaultMode is the process-wide default enforcement mode.
const DefaultMode = ModeGuided

// IsValid checks whether the mode is a known enforcement mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeStrict, ModeGuided, ModePermissive:
		return true
	}
	return false
}

// ParseMode converts a string to a Mode, falling back to DefaultMode
// for empty or unknown values.
func ParseMode(s string) Mode {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if m.IsValid() {
		return m
	}
	return DefaultMode
}
