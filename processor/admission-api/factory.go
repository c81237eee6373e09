package admissionapi

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the admission-api processor with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "admission-api",
		Factory:     NewComponent,
		Schema:      admissionAPISchema,
		Type:        "processor",
		Protocol:    "docflow",
		Domain:      "admission",
		Description: "Request/reply and HTTP service for document admission checks",
		Version:     "1.0.0",
	})
}
