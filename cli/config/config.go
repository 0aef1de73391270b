package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the backend URL used when nothing else is configured.
const DefaultEndpoint = "ws://localhost:8000/robotcrane"

// DefaultPath is the config file read when --config is not given and the
// file exists in the working directory.
const DefaultPath = "craneview.yaml"

// Config represents a craneview.yaml configuration file.
// All values are optional and act as defaults for CLI flags.
// CLI flags always override config values.
type Config struct {
	Endpoint       string        `yaml:"endpoint"`
	Dialect        string        `yaml:"dialect"`
	Classification string        `yaml:"classification"`
	DialTimeout    Duration      `yaml:"dial_timeout"`
	FPS            int           `yaml:"fps"`
	Recovery       string        `yaml:"recovery"`
	Record         string        `yaml:"record"`
	Storage        StorageConfig `yaml:"storage"`
	Policy         PolicyConfig  `yaml:"policy"`
	Adapter        AdapterConfig `yaml:"adapter"`
}

// StorageConfig selects where pose history goes. An empty backend disables
// history.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"` // fs or s3
	Path        string `yaml:"path"`    // directory, or bucket/prefix for s3
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// PolicyConfig configures the history policy.
type PolicyConfig struct {
	Name          string   `yaml:"name"` // strict, buffered or noop
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
	MaxBuffer     int      `yaml:"max_buffer"`
	Queue         int      `yaml:"queue"`
}

// AdapterConfig configures the session-ended notification.
type AdapterConfig struct {
	Type    string            `yaml:"type"` // webhook or redis
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Validate checks enumerated values. Empty values are allowed everywhere.
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		if value == "" {
			return
		}
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: %q is not one of %v", field, value, allowed))
	}
	check("dialect", c.Dialect, "data", "legacy")
	check("classification", c.Classification, "content", "tagged")
	check("recovery", c.Recovery, "reset", "cancel")
	check("storage.backend", c.Storage.Backend, "fs", "s3")
	check("policy.name", c.Policy.Name, "strict", "buffered", "noop")
	check("adapter.type", c.Adapter.Type, "webhook", "redis")

	if c.FPS < 0 {
		errs = append(errs, fmt.Errorf("fps: must be >= 0, got %d", c.FPS))
	}
	if c.Storage.Backend != "" && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path: required when storage.backend is set"))
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		errs = append(errs, errors.New("adapter.url: required when adapter.type is set"))
	}
	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
// An empty string leaves the duration zero.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
