package handlers

import (
	"context"
	"fmt"
	"sort"

	"netgate/internal/controller"
	"netgate/internal/registry"
)

// BuiltinSource serves the compiled-in handler set.
type BuiltinSource struct {
	defs map[string]*Definition
}

var _ registry.Source = (*BuiltinSource)(nil)

// NewBuiltinSource constructs every built-in definition against the given
// controller client.
func NewBuiltinSource(c controller.Client) *BuiltinSource {
	s := &BuiltinSource{defs: make(map[string]*Definition)}
	for _, group := range [][]*Definition{
		firewallDefinitions(c),
		portForwardDefinitions(c),
		networkDefinitions(c),
		deviceDefinitions(c),
		clientDefinitions(c),
		statsDefinitions(c),
		systemDefinitions(c),
	} {
		for _, d := range group {
			s.defs[d.Name] = d
		}
	}
	return s
}

// ResolveHandler implements registry.Source.
func (s *BuiltinSource) ResolveHandler(ctx context.Context, name string) (*registry.Handler, error) {
	d, ok := s.defs[name]
	if !ok {
		return nil, fmt.Errorf("no built-in handler named %q", name)
	}
	return d.Handler(), nil
}

// Definitions returns all built-in definitions sorted by name.
func (s *BuiltinSource) Definitions() []*Definition {
	out := make([]*Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Manifest builds the lazy-mode manifest from the built-in set. The
// manifest generator writes this to disk; lazy mode then populates the
// registry from the file without touching handler construction.
func (s *BuiltinSource) Manifest() *registry.Manifest {
	m := &registry.Manifest{Version: 1}
	for _, d := range s.Definitions() {
		m.Tools = append(m.Tools, registry.ManifestEntry{
			Name:        d.Name,
			Description: d.Description,
			Category:    d.Category,
			Action:      string(d.Action),
			Input:       d.Input,
			Output:      d.Output,
			Source:      "builtin",
		})
	}
	return m
}

// MultiSource tries sources in order; the first one that resolves wins.
// Used to layer script-backed handlers over the built-in set.
type MultiSource []registry.Source

// ResolveHandler implements registry.Source.
func (m MultiSource) ResolveHandler(ctx context.Context, name string) (*registry.Handler, error) {
	var lastErr error
	for _, src := range m {
		h, err := src.ResolveHandler(ctx, name)
		if err == nil {
			return h, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no handler source configured")
	}
	return nil, lastErr
}
