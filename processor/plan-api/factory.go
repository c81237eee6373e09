package planapi

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the plan-api processor with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "plan-api",
		Factory:     NewComponent,
		Schema:      planAPISchema,
		Type:        "processor",
		Protocol:    "docflow",
		Domain:      "orchestration",
		Description: "HTTP service for plan validation, run sessions, and decision relay",
		Version:     "1.0.0",
	})
}
