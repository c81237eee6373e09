// Package project derives per-project artifact state from stored file
// records. The derivation is a pure fold over records; the KV-backed
// store and inspector bridge it to NATS JetStream.
package project

import (
	"time"

	"github.com/hexlight/docuflow/constraint"
)

// Origin identifies how an artifact entered the project.
type Origin string

const (
	// OriginGenerated marks artifacts produced by the generation pipeline.
	OriginGenerated Origin = "ai-generated"

	// OriginUploaded marks artifacts uploaded by a user.
	OriginUploaded Origin = "user-uploaded"
)

// sentinelLine marks an extracted doc-type mention whose location could
// not be established. Such mentions are not trusted.
const sentinelLine = -1

// DocRange is one extracted-metadata record from an uploaded file: a
// document type and the line range where it was located. A range with
// Start == -1 means the type was mentioned but never located; it is not
// trusted. A zero range (type listed with no location at all) is
// accepted.
type DocRange struct {
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Trusted reports whether this extraction may contribute its doc type.
func (r DocRange) Trusted() bool { return r.Start != sentinelLine }

// FileRecord is one stored file belonging to a project. Records are
// written by the upload ingester and the generation pipeline and read
// back by the inspector.
type FileRecord struct {
	ID        string `json:"id"`
	ProjectID int    `json:"project_id"`

	// DocType is the declared type for generated artifacts. Empty for
	// uploads, whose types come from Metadata and ManualTags.
	DocType string `json:"doc_type,omitempty"`

	Origin Origin `json:"origin"`

	// Path is the original storage path. MarkdownPath, when set, points
	// at a rendered markdown version preferred for generation context.
	Path         string `json:"path"`
	MarkdownPath string `json:"markdown_path,omitempty"`

	// Metadata holds extracted doc-type ranges for uploads.
	Metadata []DocRange `json:"extracted_metadata,omitempty"`

	// ManualTags holds user-assigned doc types on legacy uploads.
	ManualTags []string `json:"manual_tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// ContextPath returns the path preferred when the record feeds
// generation context.
func (f *FileRecord) ContextPath() string {
	if f.MarkdownPath != "" {
		return f.MarkdownPath
	}
	return f.Path
}

// State is the derived project state: which document types exist and,
// per type, the storage path preferred for generation context. State is
// a short-lived value recomputed on demand; callers must not cache it
// across admissions.
type State struct {
	ProjectID int

	// DocTypes lists present types in catalog table order.
	DocTypes []constraint.DocType

	// Paths maps each present type to its chosen context path.
	Paths map[constraint.DocType]string
}

// Has reports whether the document type is present in the project.
func (s *State) Has(docType constraint.DocType) bool {
	_, ok := s.Paths[docType]
	return ok
}

// Available returns the doc-type set as a membership map.
func (s *State) Available() map[constraint.DocType]bool {
	out := make(map[constraint.DocType]bool, len(s.DocTypes))
	for _, d := range s.DocTypes {
		out[d] = true
	}
	return out
}
