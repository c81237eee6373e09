package admissionapi

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/c360studio/semstreams/component"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/constraint"
)

// admissionAPISchema defines the configuration schema.
var admissionAPISchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the admission-api processor.
type Config struct {
	Ports          *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`
	DefaultMode    string                `json:"default_mode" schema:"type:string,description:Enforcement mode when a request names none (strict|guided|permissive),category:basic,default:guided"`
	CatalogVariant string                `json:"catalog_variant" schema:"type:string,description:Constraint catalog edition (enhanced|current),category:basic,default:enhanced"`
	TimeoutSecs    int                   `json:"timeout_secs" schema:"type:integer,description:Request timeout in seconds,category:basic,default:30"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.TimeoutSecs < 0 {
		return fmt.Errorf("timeout_secs must be non-negative")
	}
	if c.DefaultMode != "" && !admission.Mode(strings.ToUpper(c.DefaultMode)).IsValid() {
		return fmt.Errorf("default_mode must be strict, guided, or permissive")
	}
	switch constraint.Variant(c.CatalogVariant) {
	case "", constraint.VariantEnhanced, constraint.VariantCurrent:
	default:
		return fmt.Errorf("catalog_variant must be enhanced or current")
	}
	return nil
}

// DefaultConfig returns the default configuration for admission-api.
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "admission_checks",
					Type:        "nats",
					Subject:     "docflow.admission.check",
					Required:    true,
					Description: "Admission check request/reply subject",
				},
			},
		},
		DefaultMode:    "guided",
		CatalogVariant: string(constraint.VariantEnhanced),
		TimeoutSecs:    30,
	}
}
