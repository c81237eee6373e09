package planapi

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/c360studio/semstreams/component"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/constraint"
	"github.com/hexlight/docuflow/run"
)

// planAPISchema defines the configuration schema.
var planAPISchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the plan-api processor.
type Config struct {
	Ports               *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`
	OutputDir           string                `json:"output_dir" schema:"type:string,description:Directory generated artifacts are written under,category:basic,default:./artifacts"`
	ModelConfigPath     string                `json:"model_config_path" schema:"type:string,description:Path to the model registry config file (empty uses built-in defaults),category:basic"`
	DefaultMode         string                `json:"default_mode" schema:"type:string,description:Enforcement mode when a request names none (strict|guided|permissive),category:basic,default:guided"`
	CatalogVariant      string                `json:"catalog_variant" schema:"type:string,description:Constraint catalog edition (enhanced|current),category:basic,default:enhanced"`
	OnDocFailure        string                `json:"on_doc_failure" schema:"type:string,description:Step policy when a document fails (abort-step|continue-step),category:basic,default:abort-step"`
	GateAfterFinalStep  bool                  `json:"gate_after_final_step" schema:"type:boolean,description:Ask for a decision after the last step too,category:basic,default:false"`
	DecisionTimeoutSecs int                   `json:"decision_timeout_secs" schema:"type:integer,description:How long a run waits at a decision gate before stopping,category:basic,default:300"`
	MinContextLength    int                   `json:"min_prerequisite_content_length" schema:"type:integer,description:Advisory floor in bytes for loaded prerequisite context,category:basic,default:100"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DecisionTimeoutSecs < 0 {
		return fmt.Errorf("decision_timeout_secs must be non-negative")
	}
	if c.MinContextLength < 0 {
		return fmt.Errorf("min_prerequisite_content_length must be non-negative")
	}
	if c.DefaultMode != "" && !admission.Mode(strings.ToUpper(c.DefaultMode)).IsValid() {
		return fmt.Errorf("default_mode must be strict, guided, or permissive")
	}
	switch constraint.Variant(c.CatalogVariant) {
	case "", constraint.VariantEnhanced, constraint.VariantCurrent:
	default:
		return fmt.Errorf("catalog_variant must be enhanced or current")
	}
	switch run.FailurePolicy(c.OnDocFailure) {
	case "", run.AbortStep, run.ContinueStep:
	default:
		return fmt.Errorf("on_doc_failure must be abort-step or continue-step")
	}
	return nil
}

// Policy builds the executor policy from the configuration.
func (c *Config) Policy() run.Policy {
	return run.Policy{
		OnDocFailure:       run.FailurePolicy(c.OnDocFailure),
		GateAfterFinalStep: c.GateAfterFinalStep,
		DecisionTimeout:    time.Duration(c.DecisionTimeoutSecs) * time.Second,
	}
}

// DefaultConfig returns the default configuration for plan-api.
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "run_decisions",
					Type:        "nats",
					Subject:     "docflow.run.*.decision",
					Required:    false,
					Description: "Per-session decision subjects consumed by running executors",
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "run_events",
					Type:        "nats",
					Subject:     "docflow.run.*.events",
					Required:    true,
					Description: "Per-session run event subjects",
				},
			},
		},
		OutputDir:           "./artifacts",
		DefaultMode:         "guided",
		CatalogVariant:      string(constraint.VariantEnhanced),
		OnDocFailure:        string(run.AbortStep),
		DecisionTimeoutSecs: 300,
		MinContextLength:    100,
	}
}
