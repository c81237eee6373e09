// Package planapi provides the HTTP surface for submitting generation
// plans, driving run sessions, and relaying user decisions to running
// executors.
package planapi

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
	"github.com/hexlight/docuflow/generate"
	"github.com/hexlight/docuflow/llm"
	_ "github.com/hexlight/docuflow/llm/providers" // register LLM providers
	"github.com/hexlight/docuflow/model"
	"github.com/hexlight/docuflow/plan"
	"github.com/hexlight/docuflow/project"
	"github.com/hexlight/docuflow/run"
	"github.com/hexlight/docuflow/session"
)

// Component implements the plan-api processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	catalog     *constraint.Catalog
	defaultMode admission.Mode

	// Pipeline is built lazily because the file record bucket may not
	// exist until the first store write.
	pipeMu    sync.RWMutex
	inspector project.Inspector
	evaluator *admission.Evaluator
	validator *plan.Validator
	executor  *run.Executor

	// Seams for tests; production wiring targets the DOCFLOW stream.
	newChannel      func(sessionID string) session.Channel
	publishDecision func(ctx context.Context, sessionID string, d session.Decision) error

	// Active and finished run sessions
	sessionsMu sync.RWMutex
	sessions   map[string]*sessionInfo

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	runCtx    context.Context

	// Metrics
	plansSubmitted atomic.Int64
	plansRejected  atomic.Int64
	runsStarted    atomic.Int64
	lastActivityMu sync.RWMutex
	lastActivity   time.Time
}

// sessionInfo is the queryable status of one run session.
type sessionInfo struct {
	ID        string    `json:"sessionId"`
	ProjectID int       `json:"projectId"`
	StartedAt time.Time `json:"startedAt"`

	Done     bool              `json:"done"`
	Terminal session.EventType `json:"terminal,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// NewComponent creates a new plan-api processor.
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
	if config.OutputDir == "" {
		config.OutputDir = defaults.OutputDir
	}
	if config.DefaultMode == "" {
		config.DefaultMode = defaults.DefaultMode
	}
	if config.CatalogVariant == "" {
		config.CatalogVariant = defaults.CatalogVariant
	}
	if config.OnDocFailure == "" {
		config.OnDocFailure = defaults.OnDocFailure
	}
	if config.DecisionTimeoutSecs == 0 {
		config.DecisionTimeoutSecs = defaults.DecisionTimeoutSecs
	}
	if config.MinContextLength == 0 {
		config.MinContextLength = defaults.MinContextLength
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	catalog, err := constraint.Load(constraint.Variant(config.CatalogVariant))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	logger := deps.GetLogger()

	c := &Component{
		name:        "plan-api",
		config:      config,
		natsClient:  deps.NATSClient,
		logger:      logger,
		catalog:     catalog,
		defaultMode: admission.ParseMode(config.DefaultMode),
		sessions:    make(map[string]*sessionInfo),
	}
	c.newChannel = func(sessionID string) session.Channel {
		return session.NewStreamChannel(sessionID, c.natsClient, c.logger)
	}
	c.publishDecision = c.publishDecisionToStream
	return c, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized plan-api",
		"output_dir", c.config.OutputDir,
		"default_mode", c.defaultMode,
		"decision_timeout_secs", c.config.DecisionTimeoutSecs)
	return nil
}

// Start begins accepting plan submissions.
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

	// Run sessions are children of this context so Stop cancels them.
	runCtx, cancel := context.WithCancel(ctx)
	c.runCtx = runCtx
	c.cancel = cancel
	c.mu.Unlock()

	// Warm up the pipeline; failure is non-fatal because the file
	// record bucket may be created later by the ingester.
	if err := c.buildPipeline(ctx); err != nil {
		c.logger.Warn("Generation pipeline not ready, will retry on submissions", "error", err)
	}

	c.logger.Info("plan-api started",
		"output_dir", c.config.OutputDir,
		"default_mode", c.defaultMode)

	return nil
}

// buildPipeline constructs the validator and executor over shared
// infrastructure. Uses double-checked locking so concurrent submissions
// share one pipeline.
func (c *Component) buildPipeline(ctx context.Context) error {
	c.pipeMu.RLock()
	ready := c.executor != nil && c.validator != nil
	c.pipeMu.RUnlock()
	if ready {
		return nil
	}

	c.pipeMu.Lock()
	defer c.pipeMu.Unlock()
	if c.executor != nil && c.validator != nil {
		return nil
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}
	store, err := project.NewStore(ctx, js)
	if err != nil {
		return fmt.Errorf("open file record store: %w", err)
	}

	registry, err := c.loadRegistry()
	if err != nil {
		return err
	}

	inspector := project.NewInspector(c.catalog, store)
	evaluator := admission.NewEvaluator(c.catalog, inspector)
	completer := llm.NewClient(registry, llm.WithLogger(c.logger))
	generator := generate.NewDocumentGenerator(c.catalog, completer, store, c.config.OutputDir, c.logger,
		generate.WithMinContextLength(c.config.MinContextLength))

	c.inspector = inspector
	c.evaluator = evaluator
	c.validator = plan.NewValidator(evaluator, inspector)
	c.executor = run.NewExecutor(c.catalog, evaluator, generator, c.config.Policy(), c.logger)
	return nil
}

// loadRegistry loads the model registry from the configured path, or
// falls back to the built-in defaults.
func (c *Component) loadRegistry() (*model.Registry, error) {
	if c.config.ModelConfigPath == "" {
		return model.NewDefaultRegistry(), nil
	}
	registry, err := model.LoadFromFile(c.config.ModelConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load model config %s: %w", c.config.ModelConfigPath, err)
	}
	return registry, nil
}

// launchRun starts the executor for an accepted plan in its own
// goroutine and records the session.
func (c *Component) launchRun(sessionID string, p *plan.Plan, opts admission.Options) {
	info := &sessionInfo{
		ID:        sessionID,
		ProjectID: p.ProjectID,
		StartedAt: time.Now(),
	}
	c.sessionsMu.Lock()
	c.sessions[sessionID] = info
	c.sessionsMu.Unlock()

	c.runsStarted.Add(1)

	c.mu.RLock()
	runCtx := c.runCtx
	c.mu.RUnlock()
	if runCtx == nil {
		runCtx = context.Background()
	}

	c.pipeMu.RLock()
	executor := c.executor
	c.pipeMu.RUnlock()

	ch := c.newChannel(sessionID)

	go func() {
		state, err := executor.Execute(runCtx, p, ch, opts)

		c.sessionsMu.Lock()
		info.Done = true
		if state != nil {
			info.Terminal = state.Terminal
		}
		if err != nil {
			info.Error = err.Error()
		}
		c.sessionsMu.Unlock()

		if err != nil {
			c.logger.Error("Run session failed", "session_id", sessionID, "error", err)
			return
		}
		c.logger.Info("Run session finished",
			"session_id", sessionID,
			"project_id", p.ProjectID,
			"terminal", info.Terminal)
	}()
}

// sessionStatus returns a snapshot of the session, or nil.
func (c *Component) sessionStatus(sessionID string) *sessionInfo {
	c.sessionsMu.RLock()
	defer c.sessionsMu.RUnlock()
	info, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}
	snapshot := *info
	return &snapshot
}

// DecisionMessageType is the message type for run decisions published
// on behalf of users.
var DecisionMessageType = message.Type{
	Domain:   "docflow",
	Category: "run-decision",
	Version:  "v1",
}

// decisionPayload adapts a session decision to the BaseMessage payload
// contract.
type decisionPayload struct {
	session.Decision
}

// Schema returns the message type for this payload.
func (p *decisionPayload) Schema() message.Type {
	return DecisionMessageType
}

// Validate validates the decision.
func (p *decisionPayload) Validate() error {
	return p.Decision.Validate()
}

// MarshalJSON marshals the decision to JSON.
func (p *decisionPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Decision)
}

// UnmarshalJSON unmarshals the decision from JSON.
func (p *decisionPayload) UnmarshalJSON(data []byte) error {
	d, err := session.ParseDecision(data)
	if err != nil {
		return err
	}
	p.Decision = d
	return nil
}

// publishDecisionToStream publishes a decision to the session's
// decision subject where the executor's gate consumer picks it up.
func (c *Component) publishDecisionToStream(ctx context.Context, sessionID string, d session.Decision) error {
	baseMsg := message.NewBaseMessage(DecisionMessageType, &decisionPayload{Decision: d}, "plan-api")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	subject := session.DecisionSubject(sessionID)
	if err := c.natsClient.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Stop gracefully stops the component and cancels running sessions.
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
	c.logger.Info("plan-api stopped",
		"plans_submitted", c.plansSubmitted.Load(),
		"plans_rejected", c.plansRejected.Load(),
		"runs_started", c.runsStarted.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "plan-api",
		Type:        "processor",
		Description: "HTTP service for plan validation, run sessions, and decision relay",
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
	return planAPISchema
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
