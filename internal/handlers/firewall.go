package handlers

import (
	"context"
	"fmt"

	"netgate/internal/confirm"
	"netgate/internal/controller"
	"netgate/internal/permissions"
)

func firewallDefinitions(c controller.Client) []*Definition {
	return []*Definition{
		{
			Name:        "netgate_list_firewall_policies",
			Description: "List all zone-based firewall policies with their action, zones and enabled state.",
			Category:    "firewall",
			Action:      permissions.ActionRead,
			Input:       schema(nil, map[string]any{}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				policies, err := c.ListFirewallPolicies(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"policies": policies, "count": len(policies)}, nil
			},
		},
		{
			Name:        "netgate_get_firewall_policy",
			Description: "Get full details of a single firewall policy by id.",
			Category:    "firewall",
			Action:      permissions.ActionRead,
			Input:       schema([]string{"policy_id"}, map[string]any{"policy_id": prop("string", "Firewall policy identifier")}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "policy_id")
				if err != nil {
					return nil, err
				}
				return c.GetFirewallPolicy(ctx, id)
			},
		},
		{
			Name:        "netgate_create_firewall_policy",
			Description: "Create a new zone-based firewall policy.",
			Category:    "firewall",
			Action:      permissions.ActionCreate,
			Input: schema([]string{"name", "action", "source_zone", "dest_zone"}, mutatingProps(map[string]any{
				"name":        prop("string", "Policy name"),
				"action":      map[string]any{"type": "string", "enum": []any{"allow", "deny"}, "description": "Policy verdict"},
				"source_zone": prop("string", "Source zone"),
				"dest_zone":   prop("string", "Destination zone"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				p, err := firewallPolicyFromArgs(args)
				if err != nil {
					return nil, err
				}
				return c.CreateFirewallPolicy(ctx, p)
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				p, err := firewallPolicyFromArgs(args)
				if err != nil {
					return nil, err
				}
				return confirm.Create("firewall_policy", p.Name, map[string]any{
					"name": p.Name, "action": p.Action,
					"source_zone": p.SourceZone, "dest_zone": p.DestZone,
					"enabled": p.Enabled,
				}, nil), nil
			},
		},
		{
			Name:        "netgate_update_firewall_policy",
			Description: "Update fields of an existing firewall policy.",
			Category:    "firewall",
			Action:      permissions.ActionUpdate,
			Input: schema([]string{"policy_id"}, mutatingProps(map[string]any{
				"policy_id": prop("string", "Firewall policy identifier"),
				"name":      prop("string", "New policy name"),
				"action":    map[string]any{"type": "string", "enum": []any{"allow", "deny"}, "description": "New verdict"},
				"index":     prop("integer", "New rule ordering index"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "policy_id")
				if err != nil {
					return nil, err
				}
				return c.UpdateFirewallPolicy(ctx, id, policyUpdates(args))
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "policy_id")
				if err != nil {
					return nil, err
				}
				p, err := c.GetFirewallPolicy(ctx, id)
				if err != nil {
					return nil, err
				}
				return confirm.Update("firewall_policy", p.ID, p.Name, map[string]any{
					"name": p.Name, "action": p.Action, "index": p.Index,
				}, policyUpdates(args)), nil
			},
		},
		{
			Name:        "netgate_toggle_firewall_policy",
			Description: "Enable or disable a firewall policy (flips its current state).",
			Category:    "firewall",
			Action:      permissions.ActionUpdate,
			Input: schema([]string{"policy_id"}, mutatingProps(map[string]any{
				"policy_id": prop("string", "Firewall policy identifier"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "policy_id")
				if err != nil {
					return nil, err
				}
				p, err := c.GetFirewallPolicy(ctx, id)
				if err != nil {
					return nil, err
				}
				return c.SetFirewallPolicyState(ctx, id, !p.Enabled)
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "policy_id")
				if err != nil {
					return nil, err
				}
				p, err := c.GetFirewallPolicy(ctx, id)
				if err != nil {
					return nil, err
				}
				return confirm.Toggle("firewall_policy", p.ID, p.Name, p.Enabled, map[string]any{"action": p.Action}), nil
			},
		},
	}
}

func firewallPolicyFromArgs(args map[string]any) (controller.FirewallPolicy, error) {
	name, err := argString(args, "name")
	if err != nil {
		return controller.FirewallPolicy{}, err
	}
	action, err := argString(args, "action")
	if err != nil {
		return controller.FirewallPolicy{}, err
	}
	if action != "allow" && action != "deny" {
		return controller.FirewallPolicy{}, fmt.Errorf("action must be allow or deny, got %q", action)
	}
	src, err := argString(args, "source_zone")
	if err != nil {
		return controller.FirewallPolicy{}, err
	}
	dst, err := argString(args, "dest_zone")
	if err != nil {
		return controller.FirewallPolicy{}, err
	}
	return controller.FirewallPolicy{
		Name:       name,
		Action:     action,
		SourceZone: src,
		DestZone:   dst,
		Enabled:    optBool(args, "enabled", true),
	}, nil
}

func policyUpdates(args map[string]any) map[string]any {
	updates := make(map[string]any)
	for _, key := range []string{"name", "action"} {
		if v, ok := args[key].(string); ok && v != "" {
			updates[key] = v
		}
	}
	if v, ok := args["index"].(float64); ok {
		updates["index"] = int(v)
	}
	return updates
}
