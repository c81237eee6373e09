// Package uploadingester watches the per-project uploads tree, extracts
// doc-type metadata from uploaded documents, renders HTML uploads to
// markdown, and registers file records in the project store.
package uploadingester

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/project"
)

// RecordStore is the slice of the project store the ingester needs.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec *project.FileRecord) (string, error)
	DeactivateRecord(ctx context.Context, projectID int, recordID string) error
}

// Component implements the upload-ingester processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	catalog  *constraint.Catalog
	renderer *Renderer

	// Store is created lazily on first ingestion.
	storeMu sync.RWMutex
	store   RecordStore

	// Record index: relative upload path to its active record, so
	// re-uploads and deletions can retire the previous record.
	indexMu sync.Mutex
	index   map[string]recordRef

	// Notification subject for ingested records
	notifySubject string

	watcher *UploadWatcher

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	filesIngested    atomic.Int64
	filesDeactivated atomic.Int64
	ingestFailures   atomic.Int64
	lastActivityMu   sync.RWMutex
	lastActivity     time.Time
}

type recordRef struct {
	projectID int
	recordID  string
}

// NewComponent creates a new upload-ingester processor.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults if not specified
	defaults := DefaultConfig()
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}
	if config.UploadsDir == "" {
		config.UploadsDir = defaults.UploadsDir
	}
	if config.RenderedDir == "" {
		config.RenderedDir = defaults.RenderedDir
	}
	if len(config.Include) == 0 {
		config.Include = defaults.Include
	}
	if len(config.Exclude) == 0 {
		config.Exclude = defaults.Exclude
	}
	if config.DebounceDelay == "" {
		config.DebounceDelay = defaults.DebounceDelay
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	notifySubject := "docflow.files.ingested"
	if config.Ports != nil && len(config.Ports.Outputs) > 0 {
		notifySubject = config.Ports.Outputs[0].Subject
	}

	return &Component{
		name:          "upload-ingester",
		config:        config,
		natsClient:    deps.NATSClient,
		logger:        deps.GetLogger(),
		catalog:       constraint.MustLoad(constraint.VariantEnhanced),
		renderer:      NewRenderer(),
		index:         make(map[string]recordRef),
		notifySubject: notifySubject,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized upload-ingester",
		"uploads_dir", c.config.UploadsDir,
		"include", c.config.Include)
	return nil
}

// Start begins watching the uploads tree.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	watcher, err := NewUploadWatcher(c.config, c.logger)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Start(subCtx); err != nil {
		c.rollbackStart(cancel)
		_ = watcher.Stop()
		return fmt.Errorf("start watcher: %w", err)
	}

	c.mu.Lock()
	c.watcher = watcher
	c.mu.Unlock()

	go c.consumeEvents(subCtx, watcher.Events())

	c.logger.Info("upload-ingester started",
		"uploads_dir", c.config.UploadsDir,
		"rendered_dir", c.config.RenderedDir)

	return nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

// consumeEvents processes debounced upload events until the channel
// closes.
func (c *Component) consumeEvents(ctx context.Context, events <-chan UploadEvent) {
	for event := range events {
		if ctx.Err() != nil {
			return
		}
		switch event.Op {
		case UploadOpWrite:
			if err := c.ingest(ctx, event); err != nil {
				c.ingestFailures.Add(1)
				c.logger.Error("Failed to ingest upload", "path", event.Path, "error", err)
			}
		case UploadOpDelete:
			if err := c.retire(ctx, event.Path); err != nil {
				c.logger.Error("Failed to retire upload record", "path", event.Path, "error", err)
			}
		}
	}
}

// ingest registers one uploaded file as a project record, rendering
// HTML to markdown first.
func (c *Component) ingest(ctx context.Context, event UploadEvent) error {
	projectID, ok := projectIDFromPath(event.Path)
	if !ok {
		c.logger.Debug("Upload outside a project directory, skipping", "path", event.Path)
		return nil
	}

	content, err := os.ReadFile(event.AbsPath)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	markdownPath := ""
	extractable := content
	if strings.EqualFold(filepath.Ext(event.Path), ".html") {
		rendered, err := c.renderer.Render(content, filepath.Base(event.Path))
		if err != nil {
			return fmt.Errorf("render html: %w", err)
		}
		markdownPath, err = c.writeRendered(projectID, event.Path, rendered.Markdown)
		if err != nil {
			return err
		}
		extractable = []byte(rendered.Markdown)
	}

	extraction, err := ExtractMetadata(c.catalog, extractable)
	if err != nil {
		return fmt.Errorf("extract metadata: %w", err)
	}

	store, err := c.getStore(ctx)
	if err != nil {
		return err
	}

	rec := &project.FileRecord{
		ProjectID:    projectID,
		Origin:       project.OriginUploaded,
		Path:         event.AbsPath,
		MarkdownPath: markdownPath,
		Metadata:     extraction.Metadata,
		ManualTags:   extraction.ManualTags,
	}
	recordID, err := store.CreateRecord(ctx, rec)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}

	// Retire the previous record for this path, if any.
	c.indexMu.Lock()
	prev, had := c.index[event.Path]
	c.index[event.Path] = recordRef{projectID: projectID, recordID: recordID}
	c.indexMu.Unlock()
	if had {
		if err := store.DeactivateRecord(ctx, prev.projectID, prev.recordID); err != nil {
			c.logger.Warn("Failed to deactivate previous record",
				"path", event.Path,
				"record_id", prev.recordID,
				"error", err)
		}
	}

	c.filesIngested.Add(1)
	c.updateLastActivity()
	c.notifyIngested(ctx, rec, recordID)

	c.logger.Info("Upload ingested",
		"path", event.Path,
		"project_id", projectID,
		"record_id", recordID,
		"doc_types", len(extraction.Metadata),
		"manual_tags", len(extraction.ManualTags))

	return nil
}

// retire deactivates the record for a deleted upload.
func (c *Component) retire(ctx context.Context, relPath string) error {
	c.indexMu.Lock()
	ref, ok := c.index[relPath]
	delete(c.index, relPath)
	c.indexMu.Unlock()
	if !ok {
		return nil
	}

	store, err := c.getStore(ctx)
	if err != nil {
		return err
	}
	if err := store.DeactivateRecord(ctx, ref.projectID, ref.recordID); err != nil {
		return fmt.Errorf("deactivate record: %w", err)
	}

	c.filesDeactivated.Add(1)
	c.updateLastActivity()
	c.logger.Info("Upload record retired", "path", relPath, "record_id", ref.recordID)
	return nil
}

// writeRendered stores the markdown rendition of an HTML upload.
func (c *Component) writeRendered(projectID int, relPath, markdown string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
	dir := filepath.Join(c.config.RenderedDir, fmt.Sprintf("p%d", projectID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create rendered dir: %w", err)
	}
	path := filepath.Join(dir, base+".md")
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("write rendered markdown: %w", err)
	}
	return path, nil
}

// getStore returns the record store, opening it on first use.
func (c *Component) getStore(ctx context.Context) (RecordStore, error) {
	c.storeMu.RLock()
	store := c.store
	c.storeMu.RUnlock()
	if store != nil {
		return store, nil
	}

	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if c.store != nil {
		return c.store, nil
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}
	s, err := project.NewStore(ctx, js)
	if err != nil {
		return nil, fmt.Errorf("open file record store: %w", err)
	}
	c.store = s
	return s, nil
}

// projectIDFromPath reads the project id from the first path segment,
// which must look like p<digits>.
func projectIDFromPath(relPath string) (int, bool) {
	rel := filepath.ToSlash(relPath)
	segment, _, _ := strings.Cut(rel, "/")
	if len(segment) < 2 || segment[0] != 'p' {
		return 0, false
	}
	id, err := strconv.Atoi(segment[1:])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IngestedEvent announces a newly registered upload record.
type IngestedEvent struct {
	RecordID  string    `json:"record_id"`
	ProjectID int       `json:"project_id"`
	Path      string    `json:"path"`
	DocTypes  []string  `json:"doc_types,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Schema returns the message type for this payload.
func (e *IngestedEvent) Schema() message.Type {
	return IngestedEventType
}

// Validate validates the event.
func (e *IngestedEvent) Validate() error {
	if e.RecordID == "" {
		return fmt.Errorf("record_id is required")
	}
	return nil
}

// MarshalJSON marshals the event to JSON.
func (e *IngestedEvent) MarshalJSON() ([]byte, error) {
	type Alias IngestedEvent
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON unmarshals the event from JSON.
func (e *IngestedEvent) UnmarshalJSON(data []byte) error {
	type Alias IngestedEvent
	return json.Unmarshal(data, (*Alias)(e))
}

// IngestedEventType is the message type for ingestion notifications.
var IngestedEventType = message.Type{
	Domain:   "docflow",
	Category: "file-ingested",
	Version:  "v1",
}

// notifyIngested publishes an ingestion notification. Failures are
// logged, not returned; notification is best-effort.
func (c *Component) notifyIngested(ctx context.Context, rec *project.FileRecord, recordID string) {
	if c.natsClient == nil {
		return
	}
	docTypes := make([]string, 0, len(rec.Metadata))
	for _, m := range rec.Metadata {
		if m.Trusted() {
			docTypes = append(docTypes, m.Type)
		}
	}

	event := &IngestedEvent{
		RecordID:  recordID,
		ProjectID: rec.ProjectID,
		Path:      rec.Path,
		DocTypes:  docTypes,
		Timestamp: time.Now(),
	}
	baseMsg := message.NewBaseMessage(IngestedEventType, event, "upload-ingester")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		c.logger.Warn("Failed to marshal ingestion notification", "error", err)
		return
	}
	if err := c.natsClient.PublishToStream(ctx, c.notifySubject, data); err != nil {
		c.logger.Warn("Failed to publish ingestion notification",
			"subject", c.notifySubject,
			"error", err)
	}
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	if c.watcher != nil {
		_ = c.watcher.Stop()
		c.watcher = nil
	}

	c.running = false
	c.logger.Info("upload-ingester stopped",
		"files_ingested", c.filesIngested.Load(),
		"files_deactivated", c.filesDeactivated.Load(),
		"ingest_failures", c.ingestFailures.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "upload-ingester",
		Type:        "processor",
		Description: "Watches the uploads tree and registers project file records",
		Version:     "1.0.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionInput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionOutput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return uploadIngesterSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: 0,
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
