package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"netgate/internal/logging"
	"netgate/internal/registry"
)

// ScriptSource resolves manifest-declared handlers from interpreted Go
// scripts. Nothing is parsed until the first dispatch of a script-backed
// tool; an evaluation failure marks that tool load-failed for the rest of
// the process (the registry caches the error).
//
// A script must define
//
//	func Run(args map[string]interface{}) (map[string]interface{}, error)
//
// and, for mutating tools, may define Preview with the same signature.
// Only whitelisted stdlib imports are allowed; scripts get no filesystem,
// network or exec access.
type ScriptSource struct {
	dir     string
	scripts map[string]string // tool name -> script filename

	allowedPackages map[string]bool
}

var _ registry.Source = (*ScriptSource)(nil)

// NewScriptSource builds a source over the manifest's script entries.
func NewScriptSource(dir string, m *registry.Manifest) *ScriptSource {
	scripts := make(map[string]string)
	for _, t := range m.Tools {
		if t.Source == "script" {
			scripts[t.Name] = t.Script
		}
	}
	return &ScriptSource{
		dir:     dir,
		scripts: scripts,
		allowedPackages: map[string]bool{
			"strings":       true,
			"strconv":       true,
			"fmt":           true,
			"math":          true,
			"regexp":        true,
			"encoding/json": true,
			"time":          true,
			"sort":          true,
			"bytes":         true,
			"errors":        true,
			// Blocked on purpose: os, os/exec, net, net/http, syscall,
			// unsafe, io/ioutil, path/filepath.
		},
	}
}

// ResolveHandler implements registry.Source.
func (s *ScriptSource) ResolveHandler(ctx context.Context, name string) (*registry.Handler, error) {
	file, ok := s.scripts[name]
	if !ok {
		return nil, fmt.Errorf("no script declared for tool %q", name)
	}

	path := filepath.Join(s.dir, file)
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", file, err)
	}

	if err := s.validateImports(string(code)); err != nil {
		return nil, fmt.Errorf("script %s: %w", file, err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if _, err := i.Eval(wrapScript(string(code))); err != nil {
		return nil, fmt.Errorf("evaluate script %s: %w", file, err)
	}

	run, err := s.lookupFunc(i, "main.Run")
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", file, err)
	}

	handler := &registry.Handler{
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return run(args)
		},
	}

	// Preview is optional; absence just means the tool has no preview
	// path of its own.
	if preview, err := s.lookupFunc(i, "main.Preview"); err == nil {
		handler.Preview = func(ctx context.Context, args map[string]any) (any, error) {
			return preview(args)
		}
	}

	logging.Get(logging.CategoryRegistry).Info("script handler %s loaded from %s", name, file)
	return handler, nil
}

type scriptFunc func(map[string]interface{}) (map[string]interface{}, error)

func (s *ScriptSource) lookupFunc(i *interp.Interpreter, symbol string) (scriptFunc, error) {
	v, err := i.Eval(symbol)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", symbol, err)
	}
	fn, ok := v.Interface().(func(map[string]interface{}) (map[string]interface{}, error))
	if !ok {
		return nil, fmt.Errorf("%s has wrong signature (want func(map[string]interface{}) (map[string]interface{}, error))", symbol)
	}
	return fn, nil
}

// validateImports rejects scripts importing anything off the whitelist.
func (s *ScriptSource) validateImports(code string) error {
	var imports []string
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			imports = append(imports, strings.Trim(trimmed, `"`))
		case strings.HasPrefix(trimmed, "import "):
			imports = append(imports, strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`))
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if pkg == "" {
			continue
		}
		if !s.allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v", forbidden)
	}
	return nil
}

// wrapScript adds a package clause when the script omits one.
func wrapScript(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return "package main\n\n" + code
}
