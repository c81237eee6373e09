// Package run executes validated plans step by step, re-checking
// admission before every document, streaming progress events, and
// gating between steps on user decisions.
package run

import (
	"context"

	"github.com/hexlight/docuflow/constraint"
)

// GenerateRequest carries everything a generator needs for one
// document.
type GenerateRequest struct {
	ProjectID    int
	DocType      constraint.DocType
	Message      string
	ContextPaths []string

	// OnProgress, when set, receives coarse progress in percent. The
	// executor relays it as doc_progress events. Implementations may
	// call it from the generating goroutine only.
	OnProgress func(percent int)
}

// GenerateResult identifies the stored artifact.
type GenerateResult struct {
	ArtifactID  string
	StoragePath string
}

// Generator produces one document. Implementations must honor context
// cancellation; a cancelled generation returns the context error.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}
