// Package generate produces document artifacts. It loads prerequisite
// context, prompts the LLM through the capability registry, writes the
// markdown artifact to disk, and registers it as a project file
// record.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/llm"
	"github.com/hexlight/docuflow/model"
	"github.com/hexlight/docuflow/project"
	"github.com/hexlight/docuflow/run"
)

// defaultMinContextLen is the advisory floor for loaded prerequisite
// content. Below it generation proceeds with a warning; prerequisite
// presence is the admission layer's job, content depth is not.
const defaultMinContextLen = 100

// Completer is the LLM surface the generator needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// RecordStore persists generated artifacts as project file records.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec *project.FileRecord) (string, error)
}

// DocumentGenerator implements run.Generator over the LLM client and
// the project file store.
type DocumentGenerator struct {
	catalog       *constraint.Catalog
	completer     Completer
	store         RecordStore
	outputDir     string
	minContextLen int
	logger        *slog.Logger
}

// Option configures a DocumentGenerator.
type Option func(*DocumentGenerator)

// WithMinContextLength sets the advisory floor, in bytes, for loaded
// prerequisite content. Thinner context logs a warning but never
// blocks generation.
func WithMinContextLength(n int) Option {
	return func(g *DocumentGenerator) {
		if n > 0 {
			g.minContextLen = n
		}
	}
}

// NewDocumentGenerator creates a generator writing artifacts under
// outputDir.
func NewDocumentGenerator(catalog *constraint.Catalog, completer Completer, store RecordStore, outputDir string, logger *slog.Logger, opts ...Option) *DocumentGenerator {
	g := &DocumentGenerator{
		catalog:       catalog,
		completer:     completer,
		store:         store,
		outputDir:     outputDir,
		minContextLen: defaultMinContextLen,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces one document artifact.
func (g *DocumentGenerator) Generate(ctx context.Context, req run.GenerateRequest) (*run.GenerateResult, error) {
	progress := req.OnProgress
	if progress == nil {
		progress = func(int) {}
	}

	progress(5)
	sections := g.loadContext(req.ContextPaths)
	progress(25)

	capability := model.CapabilityFast
	if con, ok := g.catalog.Lookup(req.DocType); ok {
		capability = model.CapabilityForCategory(con.Category)
	}

	resp, err := g.completer.Complete(ctx, llm.Request{
		Capability: capability,
		Messages:   buildMessages(g.catalog.DisplayName(req.DocType), req.Message, sections),
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", req.DocType, err)
	}
	progress(85)

	path, err := g.writeArtifact(req.ProjectID, req.DocType, uuid.New().String(), resp.Content)
	if err != nil {
		return nil, err
	}

	rec := &project.FileRecord{
		ProjectID: req.ProjectID,
		DocType:   string(req.DocType),
		Origin:    project.OriginGenerated,
		Path:      path,
	}
	artifactID, err := g.store.CreateRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("register artifact %s: %w", path, err)
	}

	g.logger.Info("Document generated",
		"doc_type", req.DocType,
		"project_id", req.ProjectID,
		"artifact_id", artifactID,
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens)

	progress(100)
	return &run.GenerateResult{ArtifactID: artifactID, StoragePath: path}, nil
}

// contextSection is one loaded prerequisite document.
type contextSection struct {
	path    string
	content string
}

// loadContext reads the prerequisite files admission pointed at.
// Unreadable files are skipped with a warning rather than failing the
// generation.
func (g *DocumentGenerator) loadContext(paths []string) []contextSection {
	var sections []contextSection
	total := 0
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			g.logger.Warn("Skipping unreadable context file", "path", p, "error", err)
			continue
		}
		sections = append(sections, contextSection{path: p, content: string(data)})
		total += len(data)
	}
	if len(sections) > 0 && total < g.minContextLen {
		g.logger.Warn("Prerequisite context is very thin", "bytes", total, "files", len(sections))
	}
	return sections
}

// writeArtifact stores the generated markdown under the project's
// artifact directory.
func (g *DocumentGenerator) writeArtifact(projectID int, docType constraint.DocType, artifactID string, content string) (string, error) {
	dir := filepath.Join(g.outputDir, fmt.Sprintf("p%d", projectID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.md", docType, shortID(artifactID))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// buildMessages assembles the prompt: a system role fixing the output
// contract, then the prerequisite documents, then the user's ask.
func buildMessages(displayName, userMessage string, sections []contextSection) []llm.Message {
	system := fmt.Sprintf(
		"You are a senior business analyst. Write a complete %s in markdown. "+
			"Ground every statement in the provided project documents; do not invent facts they contradict.",
		displayName)

	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "## Source: %s\n\n%s\n\n", filepath.Base(s.path), s.content)
	}
	if userMessage != "" {
		fmt.Fprintf(&b, "## Request\n\n%s\n", userMessage)
	} else {
		fmt.Fprintf(&b, "## Request\n\nDraft the %s from the sources above.\n", displayName)
	}

	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	}
}
