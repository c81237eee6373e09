// Package admissionapi provides a request/reply and HTTP service for
// checking whether a document's prerequisites are satisfied before
// generation.
package admissionapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/project"
)

// Component implements the admission-api processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	catalog     *constraint.Catalog
	defaultMode admission.Mode

	// Request subject
	requestSubject string

	// Evaluator and inspector are created lazily because the file
	// record bucket may not exist until the store component starts.
	evalMu    sync.RWMutex
	inspector project.Inspector
	evaluator *admission.Evaluator

	// Lifecycle
	running      bool
	startTime    time.Time
	mu           sync.RWMutex
	cancel       context.CancelFunc
	subscription *natsclient.Subscription

	// Metrics
	requestsProcessed atomic.Int64
	checksAllowed     atomic.Int64
	checksDenied      atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// CheckRequest is an admission check. It arrives either as raw JSON or
// wrapped in a BaseMessage payload.
type CheckRequest struct {
	DocType             string               `json:"docType"`
	ProjectID           int                  `json:"projectId"`
	Mode                string               `json:"mode,omitempty"`
	AdditionalAvailable []constraint.DocType `json:"additionalAvailable,omitempty"`
	AllowOverride       bool                 `json:"allowOverride,omitempty"`
}

// Validate checks the request for errors.
func (r *CheckRequest) Validate() error {
	if r.DocType == "" {
		return fmt.Errorf("docType is required")
	}
	if r.ProjectID <= 0 {
		return fmt.Errorf("projectId must be positive")
	}
	return nil
}

// CheckResponse is the reply to an admission check. Allowed applies the
// enforcement mode to the verdict; the verdict itself carries the full
// detail either way.
type CheckResponse struct {
	Allowed bool               `json:"allowed"`
	Verdict *admission.Verdict `json:"verdict,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// NewComponent creates a new admission-api processor.
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
	if config.DefaultMode == "" {
		config.DefaultMode = defaults.DefaultMode
	}
	if config.CatalogVariant == "" {
		config.CatalogVariant = defaults.CatalogVariant
	}
	if config.TimeoutSecs == 0 {
		config.TimeoutSecs = defaults.TimeoutSecs
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	catalog, err := constraint.Load(constraint.Variant(config.CatalogVariant))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	// Resolve request subject from port definitions
	requestSubject := "docflow.admission.check"
	if config.Ports != nil && len(config.Ports.Inputs) > 0 {
		requestSubject = config.Ports.Inputs[0].Subject
	}

	return &Component{
		name:           "admission-api",
		config:         config,
		natsClient:     deps.NATSClient,
		logger:         deps.GetLogger(),
		catalog:        catalog,
		defaultMode:    admission.ParseMode(config.DefaultMode),
		requestSubject: requestSubject,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized admission-api",
		"request_subject", c.requestSubject,
		"default_mode", c.defaultMode,
		"catalog_variant", c.config.CatalogVariant,
		"doc_types", c.catalog.Len())
	return nil
}

// Start begins handling admission requests.
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

	// Set running state while holding lock to prevent race condition
	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	sub, err := c.natsClient.SubscribeForRequests(subCtx, c.requestSubject, c.handleRequest)
	if err != nil {
		// Rollback running state on failure
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("subscribe to %s: %w", c.requestSubject, err)
	}

	c.mu.Lock()
	c.subscription = sub
	c.mu.Unlock()

	// Warm up the evaluator; failure is non-fatal because the file
	// record bucket may be created later by the ingester.
	if _, err := c.getEvaluator(ctx); err != nil {
		c.logger.Warn("File record store not ready, will retry on requests", "error", err)
	}

	c.logger.Info("admission-api started",
		"subject", c.requestSubject,
		"default_mode", c.defaultMode)

	return nil
}

// getEvaluator returns the evaluator, building it on first use. Uses
// double-checked locking so concurrent requests share one instance.
func (c *Component) getEvaluator(ctx context.Context) (*admission.Evaluator, error) {
	c.evalMu.RLock()
	eval := c.evaluator
	c.evalMu.RUnlock()

	if eval != nil {
		return eval, nil
	}

	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	if c.evaluator != nil {
		return c.evaluator, nil
	}

	if c.inspector == nil {
		js, err := c.natsClient.JetStream()
		if err != nil {
			return nil, fmt.Errorf("get jetstream: %w", err)
		}
		store, err := project.NewStore(ctx, js)
		if err != nil {
			return nil, fmt.Errorf("open file record store: %w", err)
		}
		c.inspector = project.NewInspector(c.catalog, store)
	}

	c.evaluator = admission.NewEvaluator(c.catalog, c.inspector)
	return c.evaluator, nil
}

// handleRequest processes an admission check and returns response data.
// Accepts both raw CheckRequest JSON and BaseMessage-wrapped requests.
func (c *Component) handleRequest(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.requestsProcessed.Add(1)
	c.updateLastActivity()

	req, err := decodeCheckRequest(data)
	if err != nil {
		return c.errorResponse(err.Error())
	}
	if err := req.Validate(); err != nil {
		return c.errorResponse(err.Error())
	}

	timeout := time.Duration(c.config.TimeoutSecs) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.check(reqCtx, req)
	if err != nil {
		c.logger.Error("Admission check failed", "doc_type", req.DocType, "project_id", req.ProjectID, "error", err)
		return c.errorResponse("admission check failed: " + err.Error())
	}

	return json.Marshal(resp)
}

// check runs one admission evaluation and applies the enforcement mode.
func (c *Component) check(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	eval, err := c.getEvaluator(ctx)
	if err != nil {
		return nil, err
	}

	mode := c.defaultMode
	if req.Mode != "" {
		mode = admission.ParseMode(req.Mode)
	}

	verdict, err := eval.Evaluate(ctx, constraint.DocType(req.DocType), req.ProjectID, admission.Options{
		Mode:                mode,
		AdditionalAvailable: req.AdditionalAvailable,
		AllowOverride:       req.AllowOverride,
	})
	if err != nil {
		return nil, err
	}

	allowed := admission.Decide(verdict, req.AllowOverride)
	if allowed {
		c.checksAllowed.Add(1)
	} else {
		c.checksDenied.Add(1)
	}

	c.logger.Debug("Admission check",
		"doc_type", req.DocType,
		"project_id", req.ProjectID,
		"mode", verdict.Mode,
		"satisfied", verdict.Satisfied,
		"allowed", allowed)

	return &CheckResponse{Allowed: allowed, Verdict: verdict}, nil
}

// decodeCheckRequest parses a raw CheckRequest, falling back to a
// BaseMessage-wrapped payload.
func decodeCheckRequest(data []byte) (*CheckRequest, error) {
	var req CheckRequest
	if err := json.Unmarshal(data, &req); err == nil && (req.DocType != "" || req.ProjectID != 0) {
		return &req, nil
	}

	var baseMsg message.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	payloadBytes, err := json.Marshal(baseMsg.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(payloadBytes, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return &req, nil
}

// errorResponse builds an error response.
// For request/reply services the raw payload is returned without a
// BaseMessage wrapper so callers can access fields directly.
func (c *Component) errorResponse(errMsg string) ([]byte, error) {
	return json.Marshal(&CheckResponse{Allowed: false, Error: errMsg})
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

	c.running = false
	c.logger.Info("admission-api stopped",
		"requests_processed", c.requestsProcessed.Load(),
		"checks_allowed", c.checksAllowed.Load(),
		"checks_denied", c.checksDenied.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "admission-api",
		Type:        "processor",
		Description: "Request/reply and HTTP service for document admission checks",
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
	return admissionAPISchema
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
