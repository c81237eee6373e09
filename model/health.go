package model

import (
	"sync"
	"time"
)

// EndpointHealth is a snapshot of one endpoint's recent behavior.
type EndpointHealth struct {
	Available       bool      `json:"available"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	LastFailure     time.Time `json:"last_failure,omitempty"`
	FailureCount    int       `json:"failure_count"`
	CircuitOpen     bool      `json:"circuit_open"`
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitempty"`
}

// HealthConfig tunes the circuit breaker.
type HealthConfig struct {
	// FailureThreshold is the consecutive failure count that opens
	// the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit blocks requests
	// before allowing a probe.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig returns the default breaker settings.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

type healthState struct {
	mu       sync.RWMutex
	config   HealthConfig
	statuses map[string]*EndpointHealth
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{config: cfg, statuses: make(map[string]*EndpointHealth)}
}

func (r *Registry) healthTracker() *healthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = newHealthState(DefaultHealthConfig())
	}
	return r.health
}

// MarkSuccess records a successful request and closes the circuit.
func (r *Registry) MarkSuccess(name string) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.statuses[name]
	if s == nil {
		s = &EndpointHealth{}
		h.statuses[name] = s
	}
	s.LastSuccess = time.Now()
	s.FailureCount = 0
	s.Available = true
	s.CircuitOpen = false
}

// MarkFailure records a failed request, opening the circuit at the
// threshold.
func (r *Registry) MarkFailure(name string) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.statuses[name]
	if s == nil {
		s = &EndpointHealth{Available: true}
		h.statuses[name] = s
	}
	s.LastFailure = time.Now()
	s.FailureCount++
	if s.FailureCount >= h.config.FailureThreshold {
		s.CircuitOpen = true
		s.CircuitOpenedAt = time.Now()
		s.Available = false
	}
}

// IsAvailable reports whether an endpoint should receive requests. An
// open circuit admits one probe after the recovery timeout.
func (r *Registry) IsAvailable(name string) bool {
	r.mu.RLock()
	h := r.health
	r.mu.RUnlock()
	if h == nil {
		return true
	}

	h.mu.RLock()
	s, ok := h.statuses[name]
	if !ok {
		h.mu.RUnlock()
		return true
	}
	open := s.CircuitOpen
	openedAt := s.CircuitOpenedAt
	timeout := h.config.RecoveryTimeout
	h.mu.RUnlock()

	if !open {
		return true
	}
	return time.Since(openedAt) > timeout
}

// Health returns a copy of an endpoint's health, or nil when the
// endpoint has never been tracked.
func (r *Registry) Health(name string) *EndpointHealth {
	r.mu.RLock()
	h := r.health
	r.mu.RUnlock()
	if h == nil {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.statuses[name]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// AvailableFallbackChain filters the capability chain to endpoints the
// breaker admits. When everything is down the full chain is returned
// so the client still tries something.
func (r *Registry) AvailableFallbackChain(c Capability) []string {
	chain := r.FallbackChain(c)
	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.IsAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}

// SetHealthConfig replaces the breaker settings.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = newHealthState(cfg)
	} else {
		r.health.config = cfg
	}
}
