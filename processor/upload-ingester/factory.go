package uploadingester

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the upload-ingester processor with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "upload-ingester",
		Factory:     NewComponent,
		Schema:      uploadIngesterSchema,
		Type:        "processor",
		Protocol:    "docflow",
		Domain:      "ingestion",
		Description: "Watches the uploads tree and registers project file records",
		Version:     "1.0.0",
	})
}
