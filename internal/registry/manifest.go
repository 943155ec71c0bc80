package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"netgate/internal/permissions"
)

// Manifest is the pre-built operation catalog used for lazy population.
// It carries everything discovery needs (name, schema, category, action)
// so the registry can answer tool listings without a single handler load.
type Manifest struct {
	Version int             `yaml:"version"`
	Tools   []ManifestEntry `yaml:"tools"`
}

// ManifestEntry is one operation in the manifest.
type ManifestEntry struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
	Action      string         `yaml:"action"`
	Input       map[string]any `yaml:"input"`
	Output      map[string]any `yaml:"output,omitempty"`

	// Source selects the handler source: "builtin" (compiled in) or
	// "script" (interpreted from ScriptsDir on first dispatch).
	Source string `yaml:"source"`
	Script string `yaml:"script,omitempty"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks names, the closed action enum, and source fields.
// Typos surface here, at load time, not at first dispatch.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Tools))
	for i, t := range m.Tools {
		if t.Name == "" {
			return fmt.Errorf("manifest tool %d: %w", i, ErrNameEmpty)
		}
		if seen[t.Name] {
			return fmt.Errorf("manifest tool %s: %w", t.Name, ErrAlreadyRegistered)
		}
		seen[t.Name] = true
		if _, err := permissions.ParseAction(t.Action); err != nil {
			return fmt.Errorf("manifest tool %s: %w", t.Name, err)
		}
		switch t.Source {
		case "builtin":
		case "script":
			if t.Script == "" {
				return fmt.Errorf("manifest tool %s: script source requires a script path", t.Name)
			}
		default:
			return fmt.Errorf("manifest tool %s: unknown source %q", t.Name, t.Source)
		}
	}
	return nil
}

// Descriptor converts a manifest entry into a handler-less descriptor.
func (e *ManifestEntry) Descriptor() *Descriptor {
	action, _ := permissions.ParseAction(e.Action)
	return &Descriptor{
		Name:         e.Name,
		Description:  e.Description,
		Category:     e.Category,
		Action:       action,
		InputSchema:  e.Input,
		OutputSchema: e.Output,
	}
}

// Write marshals the manifest to a file. Used by the manifest generator.
func (m *Manifest) Write(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
