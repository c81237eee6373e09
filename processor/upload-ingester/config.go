package uploadingester

import (
	"fmt"
	"reflect"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/semstreams/component"
)

// uploadIngesterSchema defines the configuration schema.
var uploadIngesterSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the upload-ingester processor.
type Config struct {
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// UploadsDir is the root of the per-project uploads tree. Files
	// live under p<projectID>/ subdirectories.
	UploadsDir string `json:"uploads_dir" schema:"type:string,description:Root directory of the per-project uploads tree,category:basic,default:./uploads"`

	// RenderedDir is where rendered markdown versions of HTML uploads
	// are written.
	RenderedDir string `json:"rendered_dir" schema:"type:string,description:Directory rendered markdown versions are written under,category:basic,default:./uploads/.rendered"`

	// Include lists doublestar patterns, relative to the project
	// directory, that uploads must match.
	Include []string `json:"include" schema:"type:array,description:Glob patterns uploads must match,category:advanced,default:[**/*.md,**/*.html,**/*.txt]"`

	// Exclude lists doublestar patterns that take precedence over
	// Include.
	Exclude []string `json:"exclude" schema:"type:array,description:Glob patterns excluded from ingestion,category:advanced,default:[**/.rendered/**]"`

	// DebounceDelay is how long to wait for more changes before
	// processing.
	DebounceDelay string `json:"debounce_delay" schema:"type:string,description:Debounce delay before processing file changes,category:advanced,default:500ms"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	for _, p := range append(append([]string{}, c.Include...), c.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	if c.DebounceDelay != "" {
		if _, err := time.ParseDuration(c.DebounceDelay); err != nil {
			return fmt.Errorf("invalid debounce_delay: %w", err)
		}
	}
	return nil
}

// GetDebounceDelay returns the debounce delay as a duration.
func (c *Config) GetDebounceDelay() time.Duration {
	if c.DebounceDelay == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// DefaultConfig returns the default configuration for upload-ingester.
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Outputs: []component.PortDefinition{
				{
					Name:        "file_records",
					Type:        "nats",
					Subject:     "docflow.files.ingested",
					Required:    false,
					Description: "Notifications for ingested upload records",
				},
			},
		},
		UploadsDir:    "./uploads",
		RenderedDir:   "./uploads/.rendered",
		Include:       []string{"**/*.md", "**/*.html", "**/*.txt"},
		Exclude:       []string{"**/.rendered/**"},
		DebounceDelay: "500ms",
	}
}
