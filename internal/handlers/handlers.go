// Package handlers provides the built-in operation set the gateway serves:
// network controller tools grouped by category, each with a JSON schema,
// a permission category/action pair, and (for mutating operations) a
// side-effect-free preview path.
//
// The package is a handler source at the registry boundary: eager mode
// registers every definition at startup, lazy mode resolves them by name
// on first dispatch. Script-backed handlers live in script.go.
package handlers

import (
	"fmt"

	"netgate/internal/permissions"
	"netgate/internal/registry"
)

// Definition is one built-in operation.
type Definition struct {
	Name        string
	Description string
	Category    string
	Action      permissions.Action
	Input       map[string]any
	Output      map[string]any

	Execute registry.ExecuteFunc
	// Preview is required for mutating definitions and must not change
	// controller state. This is a contract on each handler; the protocol
	// cannot enforce it structurally.
	Preview registry.ExecuteFunc
}

// Descriptor builds the registry descriptor with the handler resident.
func (d *Definition) Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:         d.Name,
		Description:  d.Description,
		Category:     d.Category,
		Action:       d.Action,
		InputSchema:  d.Input,
		OutputSchema: d.Output,
		Handler:      d.Handler(),
	}
}

// Handler returns the resident executable for this definition.
func (d *Definition) Handler() *registry.Handler {
	return &registry.Handler{Execute: d.Execute, Preview: d.Preview}
}

// schema builds a JSON-schema object with the given required keys.
func schema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// prop is a single schema property.
func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

// mutatingProps appends the confirm flag every mutating schema carries.
func mutatingProps(props map[string]any) map[string]any {
	props["confirm"] = map[string]any{
		"type":        "boolean",
		"default":     false,
		"description": "Set true to execute. False returns a preview of the intended change.",
	}
	return props
}

// argString extracts a required string argument.
func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

// optString extracts an optional string argument.
func optString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// optInt extracts an optional integer argument (JSON numbers decode as
// float64).
func optInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// optBool extracts an optional boolean argument.
func optBool(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}
