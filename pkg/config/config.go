// Package config loads the console configuration file. YAML is the
// primary format; a .toml extension selects TOML parsing instead.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds every backend request unless overridden.
const DefaultTimeout = 5 * time.Minute

// Config represents the top-level configuration file structure.
type Config struct {
	Backend  BackendConfig  `yaml:"backend" toml:"backend"`
	Provider ProviderConfig `yaml:"provider" toml:"provider"`
	// StateFile overrides the durable session-file location.
	StateFile string `yaml:"stateFile" toml:"stateFile"`
}

// BackendConfig points the console at the scanning backend. When BaseURL
// is empty the console falls back to listing repositories directly from
// the configured provider.
type BackendConfig struct {
	BaseURL string   `yaml:"baseUrl" toml:"baseUrl"`
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// ProviderConfig configures the direct repository source used when no
// backend is available.
type ProviderConfig struct {
	// Name is "gitlab" or "github".
	Name string `yaml:"name" toml:"name"`
	// BaseURL overrides the provider API endpoint for self-hosted
	// instances.
	BaseURL string `yaml:"baseUrl" toml:"baseUrl"`
}

// Duration is a time.Duration that unmarshals from strings like "90s" or
// "5m" in both YAML and TOML.
type Duration time.Duration

// UnmarshalYAML parses a duration string from YAML.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText parses a duration string (used by the TOML decoder).
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard-library duration value.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadFromFile reads a configuration file and returns the parsed Config
// with defaults applied.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = Duration(DefaultTimeout)
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "gitlab"
	}
}

// Validate rejects configurations the console cannot act on.
func (c *Config) Validate() error {
	if c.Backend.Timeout.Std() < 0 {
		return fmt.Errorf("backend timeout cannot be negative: %s", c.Backend.Timeout.Std())
	}
	switch strings.ToLower(c.Provider.Name) {
	case "gitlab", "github":
	default:
		return fmt.Errorf("unsupported provider %q (supported: gitlab, github)", c.Provider.Name)
	}
	return nil
}
