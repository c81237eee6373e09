package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// RegistryConfig is the JSON form of a registry, as found under the
// "model_registry" key of the service config file.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints"`
	DefaultModel string                       `json:"default_model,omitempty"`
}

// LoadFromFile reads a registry configuration from a JSON file.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromJSON(data)
}

// LoadFromJSON accepts either a full service config holding a
// "model_registry" key or a bare registry config.
func LoadFromJSON(data []byte) (*Registry, error) {
	var full struct {
		ModelRegistry *RegistryConfig `json:"model_registry"`
	}
	if err := json.Unmarshal(data, &full); err == nil && full.ModelRegistry != nil {
		return registryFromConfig(full.ModelRegistry), nil
	}

	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	return registryFromConfig(&cfg), nil
}

func registryFromConfig(cfg *RegistryConfig) *Registry {
	caps := make(map[Capability]*CapabilityConfig, len(cfg.Capabilities))
	for k, v := range cfg.Capabilities {
		c := ParseCapability(k)
		if c == "" {
			// Unknown names are kept verbatim so configs can define
			// extra capabilities.
			c = Capability(k)
		}
		caps[c] = v
	}

	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "local"
	}

	return &Registry{
		capabilities: caps,
		endpoints:    cfg.Endpoints,
		defaultModel: defaultModel,
	}
}
