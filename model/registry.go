package model

import (
	"sync"

	"github.com/hexlight/docuflow/constraint"
)

// Registry maps capabilities to model preference chains and model
// names to endpoints. Safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaultModel string
	health       *healthState
}

// CapabilityConfig lists models for one capability in order of
// preference. Preferred models are tried first, then fallbacks.
type CapabilityConfig struct {
	Description string   `json:"description,omitempty"`
	Preferred   []string `json:"preferred"`
	Fallback    []string `json:"fallback,omitempty"`
}

// EndpointConfig describes how to reach one model.
type EndpointConfig struct {
	// Provider selects the wire adapter (anthropic, openai, ollama).
	Provider string `json:"provider"`

	// URL overrides the provider's default base URL.
	URL string `json:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `json:"model"`

	// MaxTokens is the endpoint's context window, informational.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// NewRegistry creates a registry from explicit capability and endpoint
// maps.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig, defaultModel string) *Registry {
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaultModel: defaultModel,
	}
}

// NewDefaultRegistry returns a registry usable without configuration:
// Anthropic models preferred, a local Ollama endpoint as fallback.
func NewDefaultRegistry() *Registry {
	heavyChain := &CapabilityConfig{
		Preferred: []string{"claude-sonnet"},
		Fallback:  []string{"claude-haiku", "local"},
	}
	return &Registry{
		capabilities: map[Capability]*CapabilityConfig{
			CapabilityPlanning:      heavyChain,
			CapabilityAnalysis:      heavyChain,
			CapabilityDesign:        heavyChain,
			CapabilitySpecification: {Preferred: []string{"claude-sonnet"}, Fallback: []string{"local"}},
			CapabilityDiagram:       {Preferred: []string{"claude-haiku"}, Fallback: []string{"local"}},
			CapabilityFast:          {Preferred: []string{"claude-haiku"}, Fallback: []string{"local"}},
		},
		endpoints: map[string]*EndpointConfig{
			"claude-sonnet": {
				Provider:  "anthropic",
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 200000,
			},
			"claude-haiku": {
				Provider:  "anthropic",
				Model:     "claude-haiku-3-5-20241022",
				MaxTokens: 200000,
			},
			"local": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "qwen2.5:14b",
				MaxTokens: 128000,
			},
		},
		defaultModel: "local",
	}
}

// Resolve returns the preferred model for a capability.
func (r *Registry) Resolve(c Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaultModel
}

// FallbackChain returns every model configured for a capability,
// preferred first.
func (r *Registry) FallbackChain(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok {
		chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
		chain = append(chain, cfg.Preferred...)
		chain = append(chain, cfg.Fallback...)
		return chain
	}
	return []string{r.defaultModel}
}

// ResolveForCategory returns the preferred model for a document
// category.
func (r *Registry) ResolveForCategory(cat constraint.Category) string {
	return r.Resolve(CapabilityForCategory(cat))
}

// Endpoint returns the endpoint for a model name, or nil when the
// model is not configured.
func (r *Registry) Endpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[name]
}

// SetCapability adds or replaces a capability chain.
func (r *Registry) SetCapability(c Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capabilities == nil {
		r.capabilities = make(map[Capability]*CapabilityConfig)
	}
	r.capabilities[c] = cfg
}

// SetEndpoint adds or replaces an endpoint.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.endpoints == nil {
		r.endpoints = make(map[string]*EndpointConfig)
	}
	r.endpoints[name] = cfg
}

// Endpoints returns all configured endpoint names.
func (r *Registry) Endpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	return names
}
