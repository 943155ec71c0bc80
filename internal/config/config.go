// Package config loads the gateway's YAML configuration and applies
// environment overrides. Permission rules live in their own section and
// can be hot-reloaded; see watcher.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"netgate/internal/permissions"
)

// Mode selects how the registry is populated.
const (
	ModeEager = "eager"
	ModeLazy  = "lazy"
)

// Config holds all netgate configuration.
type Config struct {
	Name string `yaml:"name"`

	Gateway GatewayConfig `yaml:"gateway"`

	// Permissions is the layered rule set: category key -> action -> allowed.
	Permissions permissions.Rules `yaml:"permissions"`

	Controller ControllerConfig `yaml:"controller"`

	Logging LoggingConfig `yaml:"logging"`
}

// GatewayConfig configures registry population and the confirmation
// protocol.
type GatewayConfig struct {
	// Mode is eager (all handlers resolved at startup) or lazy (handlers
	// resolved on first dispatch from the manifest).
	Mode string `yaml:"mode"`

	// ManifestPath points at the tool manifest used in lazy mode.
	ManifestPath string `yaml:"manifest_path"`

	// ScriptsDir holds interpreted handler scripts referenced by the
	// manifest.
	ScriptsDir string `yaml:"scripts_dir"`

	// AutoConfirm skips the preview step for every mutating call. The
	// NETGATE_AUTO_CONFIRM environment variable has the same effect.
	AutoConfirm bool `yaml:"auto_confirm"`
}

// ControllerConfig configures the backing controller client.
type ControllerConfig struct {
	// Seed loads the simulator's fixture site at startup.
	Seed bool `yaml:"seed"`
}

// LoggingConfig configures the category log files.
type LoggingConfig struct {
	Level      string   `yaml:"level"`  // debug, info, warn, error
	Format     string   `yaml:"format"` // json, text
	Debug      bool     `yaml:"debug"`
	Categories []string `yaml:"categories"` // empty enables all
	StateDir   string   `yaml:"state_dir"`
}

// DefaultConfig returns the default configuration: eager mode, reads
// allowed, every mutation denied until explicitly enabled.
func DefaultConfig() *Config {
	return &Config{
		Name: "netgate",

		Gateway: GatewayConfig{
			Mode:         ModeEager,
			ManifestPath: "config/manifest.yaml",
			ScriptsDir:   "config/scripts",
		},

		Permissions: permissions.Rules{
			"default": {
				"read":   true,
				"create": false,
				"update": false,
			},
		},

		Controller: ControllerConfig{Seed: true},

		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			StateDir: ".netgate",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a malformed one is an error. Environment overrides and
// validation apply on every path, file or not.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults stand in for the file.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Per-rule
// permission overrides (NETGATE_PERMISSIONS_*) are evaluated by the gate
// itself at decision time, not here.
func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("NETGATE_MODE"); mode != "" {
		c.Gateway.Mode = mode
	}
	if path := os.Getenv("NETGATE_MANIFEST"); path != "" {
		c.Gateway.ManifestPath = path
	}
	if dir := os.Getenv("NETGATE_SCRIPTS_DIR"); dir != "" {
		c.Gateway.ScriptsDir = dir
	}
	if v := os.Getenv("NETGATE_AUTO_CONFIRM"); v != "" {
		c.Gateway.AutoConfirm = permissions.Truthy(v)
	}
	if dir := os.Getenv("NETGATE_STATE_DIR"); dir != "" {
		c.Logging.StateDir = dir
	}
}

// Validate checks mode and permission rules. Runs at load time so a typo
// in an action name fails startup instead of silently falling through the
// precedence chain.
func (c *Config) Validate() error {
	if c.Gateway.Mode != ModeEager && c.Gateway.Mode != ModeLazy {
		return fmt.Errorf("invalid gateway mode %q (valid: %s, %s)", c.Gateway.Mode, ModeEager, ModeLazy)
	}
	if err := c.Permissions.Validate(); err != nil {
		return err
	}
	return nil
}
