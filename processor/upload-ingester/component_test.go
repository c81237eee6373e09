package uploadingester

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/project"
)

// fakeStore records create/deactivate calls in memory.
type fakeStore struct {
	records     map[string]*project.FileRecord
	deactivated []string
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*project.FileRecord)}
}

func (f *fakeStore) CreateRecord(_ context.Context, rec *project.FileRecord) (string, error) {
	f.nextID++
	id := fmt.Sprintf("rec-%d", f.nextID)
	rec.ID = id
	rec.Active = true
	clone := *rec
	f.records[id] = &clone
	return id, nil
}

func (f *fakeStore) DeactivateRecord(_ context.Context, _ int, recordID string) error {
	f.deactivated = append(f.deactivated, recordID)
	if rec, ok := f.records[recordID]; ok {
		rec.Active = false
	}
	return nil
}

func newIngesterComponent(t *testing.T, store RecordStore) *Component {
	t.Helper()
	config := DefaultConfig()
	config.UploadsDir = t.TempDir()
	config.RenderedDir = filepath.Join(config.UploadsDir, ".rendered")
	return &Component{
		name:     "upload-ingester",
		config:   config,
		logger:   slog.Default(),
		catalog:  testCatalog,
		renderer: NewRenderer(),
		index:    make(map[string]recordRef),
		store:    store,
	}
}

func writeUpload(t *testing.T, c *Component, relPath, content string) UploadEvent {
	t.Helper()
	abs := filepath.Join(c.config.UploadsDir, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return UploadEvent{Path: filepath.FromSlash(relPath), AbsPath: abs, Op: UploadOpWrite}
}

func TestIngestMarkdownUpload(t *testing.T) {
	store := newFakeStore()
	c := newIngesterComponent(t, store)

	event := writeUpload(t, c, "p7/kickoff.md", `---
manualTags:
  - risk-register
---
## Stakeholder Register

Ada, CEO.
`)

	require.NoError(t, c.ingest(context.Background(), event))

	require.Len(t, store.records, 1)
	var rec *project.FileRecord
	for _, r := range store.records {
		rec = r
	}
	assert.Equal(t, 7, rec.ProjectID)
	assert.Equal(t, project.OriginUploaded, rec.Origin)
	assert.Empty(t, rec.MarkdownPath)

	r := rec.Metadata[0]
	assert.Equal(t, string(constraint.StakeholderRegister), r.Type)
	assert.True(t, r.Trusted())
	assert.Equal(t, []string{"risk-register"}, rec.ManualTags)
}

func TestIngestHTMLUploadRendersMarkdown(t *testing.T) {
	store := newFakeStore()
	c := newIngesterComponent(t, store)

	event := writeUpload(t, c, "p3/case.html",
		`<html><head><title>Case Study</title></head><body><article>
<h1>Case Study</h1>
<h2>Business Case</h2>
<p>Savings of 40% on invoicing costs within the first year.</p>
</article></body></html>`)

	require.NoError(t, c.ingest(context.Background(), event))

	require.Len(t, store.records, 1)
	var rec *project.FileRecord
	for _, r := range store.records {
		rec = r
	}
	require.NotEmpty(t, rec.MarkdownPath)
	assert.True(t, strings.HasSuffix(rec.MarkdownPath, "case.md"))

	rendered, err := os.ReadFile(rec.MarkdownPath)
	require.NoError(t, err)
	assert.Contains(t, string(rendered), "Savings of 40%")

	// Metadata comes from the rendered markdown, not the raw HTML.
	findRange(t, rec.Metadata, constraint.BusinessCase)
}

func TestReingestRetiresPreviousRecord(t *testing.T) {
	store := newFakeStore()
	c := newIngesterComponent(t, store)

	event := writeUpload(t, c, "p7/doc.md", "## Business Case\n\nv1.\n")
	require.NoError(t, c.ingest(context.Background(), event))
	require.NoError(t, c.ingest(context.Background(), event))

	assert.Len(t, store.records, 2)
	require.Len(t, store.deactivated, 1)
}

func TestRetireDeactivatesRecord(t *testing.T) {
	store := newFakeStore()
	c := newIngesterComponent(t, store)

	event := writeUpload(t, c, "p7/doc.md", "## Business Case\n\nBody.\n")
	require.NoError(t, c.ingest(context.Background(), event))
	require.NoError(t, c.retire(context.Background(), event.Path))

	require.Len(t, store.deactivated, 1)

	// Retiring an unknown path is a no-op.
	require.NoError(t, c.retire(context.Background(), "p7/unknown.md"))
	assert.Len(t, store.deactivated, 1)
}

func TestIngestOutsideProjectDirSkipped(t *testing.T) {
	store := newFakeStore()
	c := newIngesterComponent(t, store)

	event := writeUpload(t, c, "shared/readme.md", "# Readme\n")
	require.NoError(t, c.ingest(context.Background(), event))
	assert.Empty(t, store.records)
}

func TestProjectIDFromPath(t *testing.T) {
	tests := []struct {
		path   string
		wantID int
		wantOK bool
	}{
		{"p7/doc.md", 7, true},
		{"p42/sub/dir/doc.md", 42, true},
		{"project7/doc.md", 0, false},
		{"p/doc.md", 0, false},
		{"p0/doc.md", 0, false},
		{"px7/doc.md", 0, false},
		{"doc.md", 0, false},
	}
	for _, tt := range tests {
		id, ok := projectIDFromPath(tt.path)
		assert.Equal(t, tt.wantOK, ok, tt.path)
		assert.Equal(t, tt.wantID, id, tt.path)
	}
}

func TestWatcherMatchPath(t *testing.T) {
	config := DefaultConfig()
	config.UploadsDir = t.TempDir()
	w, err := NewUploadWatcher(config, slog.Default())
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	tests := []struct {
		path string
		want bool
	}{
		{"p7/doc.md", true},
		{"p7/deep/nested/doc.html", true},
		{"p7/notes.txt", true},
		{"p7/image.png", false},
		{".rendered/p7/doc.md", false},
		{"p7/.rendered/doc.md", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.matchPath(tt.path), tt.path)
	}
}
