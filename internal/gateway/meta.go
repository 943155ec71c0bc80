package gateway

import (
	"context"
	"fmt"

	"netgate/internal/jobs"
	"netgate/internal/permissions"
	"netgate/internal/registry"
)

// RegisterMetaTools adds the gateway's own operations to the registry:
// discovery and the async job surface. They are ordinary registered tools,
// so a caller that can list tools can also find these.
func (g *Gateway) RegisterMetaTools() error {
	for _, d := range g.metaDescriptors() {
		if _, err := g.reg.Register(d); err != nil {
			return fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return nil
}

func (g *Gateway) metaDescriptors() []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "netgate_tool_index",
			Description: "List every registered tool with its schema, category, action and status.",
			Category:    "meta",
			Action:      permissions.ActionRead,
			InputSchema: objectSchema(nil, map[string]any{}),
			Handler: &registry.Handler{
				Execute: func(ctx context.Context, args map[string]any) (any, error) {
					return g.ToolIndex(), nil
				},
			},
		},
		{
			Name:        "netgate_async_start",
			Description: "Start a tool invocation in the background and return a job id immediately.",
			Category:    "meta",
			Action:      permissions.ActionRead,
			InputSchema: objectSchema([]string{"tool"}, map[string]any{
				"tool":      map[string]any{"type": "string", "description": "Name of the tool to invoke"},
				"arguments": map[string]any{"type": "object", "description": "Arguments passed to the tool"},
			}),
			Handler: &registry.Handler{
				Execute: func(ctx context.Context, args map[string]any) (any, error) {
					tool, ok := args["tool"].(string)
					if !ok || tool == "" {
						return nil, fmt.Errorf("%w: tool must be a non-empty string", ErrValidation)
					}
					return g.AsyncStart(tool, objectArg(args, "arguments")), nil
				},
			},
		},
		{
			Name:        "netgate_async_status",
			Description: "Read the state of a background job without blocking on it.",
			Category:    "meta",
			Action:      permissions.ActionRead,
			InputSchema: objectSchema([]string{"jobId"}, map[string]any{
				"jobId": map[string]any{"type": "string", "description": "Job id returned by netgate_async_start"},
			}),
			Handler: &registry.Handler{
				Execute: func(ctx context.Context, args map[string]any) (any, error) {
					id, ok := args["jobId"].(string)
					if !ok || id == "" {
						return nil, fmt.Errorf("%w: jobId must be a non-empty string", ErrValidation)
					}
					return g.AsyncStatus(id), nil
				},
			},
		},
		{
			Name:        "netgate_async_start_batch",
			Description: "Start several tool invocations as independent background jobs; returns one job ref per operation, in input order.",
			Category:    "meta",
			Action:      permissions.ActionRead,
			InputSchema: objectSchema([]string{"operations"}, map[string]any{
				"operations": map[string]any{
					"type":        "array",
					"description": "Operations to start, each {tool, arguments}",
					"items": map[string]any{
						"type":     "object",
						"required": []string{"tool"},
						"properties": map[string]any{
							"tool":      map[string]any{"type": "string"},
							"arguments": map[string]any{"type": "object"},
						},
					},
				},
			}),
			Handler: &registry.Handler{
				Execute: func(ctx context.Context, args map[string]any) (any, error) {
					ops, err := operationsArg(args)
					if err != nil {
						return nil, err
					}
					return g.AsyncStartBatch(ops), nil
				},
			},
		},
		{
			Name:        "netgate_async_status_batch",
			Description: "Read the state of several background jobs in one call; one entry per requested id.",
			Category:    "meta",
			Action:      permissions.ActionRead,
			InputSchema: objectSchema([]string{"jobIds"}, map[string]any{
				"jobIds": map[string]any{
					"type":        "array",
					"description": "Job ids to look up",
					"items":       map[string]any{"type": "string"},
				},
			}),
			Handler: &registry.Handler{
				Execute: func(ctx context.Context, args map[string]any) (any, error) {
					ids, err := stringListArg(args, "jobIds")
					if err != nil {
						return nil, err
					}
					return g.AsyncStatusBatch(ids), nil
				},
			},
		},
	}
}

func objectSchema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func objectArg(args map[string]any, key string) map[string]any {
	if m, ok := args[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func operationsArg(args map[string]any) ([]jobs.Operation, error) {
	raw, ok := args["operations"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: operations must be an array", ErrValidation)
	}
	ops := make([]jobs.Operation, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: operations[%d] must be an object", ErrValidation, i)
		}
		tool, ok := m["tool"].(string)
		if !ok || tool == "" {
			return nil, fmt.Errorf("%w: operations[%d].tool must be a non-empty string", ErrValidation, i)
		}
		ops = append(ops, jobs.Operation{Tool: tool, Arguments: objectArg(m, "arguments")})
	}
	return ops, nil
}

func stringListArg(args map[string]any, key string) ([]string, error) {
	switch v := args[key].(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string", ErrValidation, key, i)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s must be an array of strings", ErrValidation, key)
}
