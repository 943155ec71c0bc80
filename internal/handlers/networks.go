package handlers

import (
	"context"

	"netgate/internal/confirm"
	"netgate/internal/controller"
	"netgate/internal/permissions"
)

func networkDefinitions(c controller.Client) []*Definition {
	return []*Definition{
		{
			Name:        "netgate_list_networks",
			Description: "List all configured networks (LANs/VLANs).",
			Category:    "network",
			Action:      permissions.ActionRead,
			Input:       schema(nil, map[string]any{}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				networks, err := c.ListNetworks(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"networks": networks, "count": len(networks)}, nil
			},
		},
		{
			Name:        "netgate_get_network",
			Description: "Get details of a single network by id.",
			Category:    "network",
			Action:      permissions.ActionRead,
			Input:       schema([]string{"network_id"}, map[string]any{"network_id": prop("string", "Network identifier")}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "network_id")
				if err != nil {
					return nil, err
				}
				return c.GetNetwork(ctx, id)
			},
		},
		{
			Name:        "netgate_create_network",
			Description: "Create a new network (LAN/VLAN).",
			Category:    "network",
			Action:      permissions.ActionCreate,
			Input: schema([]string{"name", "subnet"}, mutatingProps(map[string]any{
				"name":    prop("string", "Network name"),
				"subnet":  prop("string", "CIDR subnet, e.g. 10.0.40.0/24"),
				"vlan":    prop("integer", "VLAN id"),
				"purpose": map[string]any{"type": "string", "enum": []any{"corporate", "guest", "iot"}, "description": "Network purpose"},
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				n, err := networkFromArgs(args)
				if err != nil {
					return nil, err
				}
				return c.CreateNetwork(ctx, n)
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				n, err := networkFromArgs(args)
				if err != nil {
					return nil, err
				}
				return confirm.Create("network", n.Name, map[string]any{
					"name": n.Name, "subnet": n.Subnet, "vlan": n.VLAN, "purpose": n.Purpose,
				}, nil), nil
			},
		},
		{
			Name:        "netgate_update_network",
			Description: "Update fields of an existing network.",
			Category:    "network",
			Action:      permissions.ActionUpdate,
			Input: schema([]string{"network_id"}, mutatingProps(map[string]any{
				"network_id": prop("string", "Network identifier"),
				"name":       prop("string", "New name"),
				"subnet":     prop("string", "New CIDR subnet"),
				"vlan":       prop("integer", "New VLAN id"),
				"enabled":    prop("boolean", "Enable or disable the network"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "network_id")
				if err != nil {
					return nil, err
				}
				return c.UpdateNetwork(ctx, id, networkUpdates(args))
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "network_id")
				if err != nil {
					return nil, err
				}
				n, err := c.GetNetwork(ctx, id)
				if err != nil {
					return nil, err
				}
				return confirm.Update("network", n.ID, n.Name, map[string]any{
					"name": n.Name, "subnet": n.Subnet, "vlan": n.VLAN, "enabled": n.Enabled,
				}, networkUpdates(args)), nil
			},
		},
		{
			Name:        "netgate_delete_network",
			Description: "Delete a network. Permission-wise this follows the category's update rule.",
			Category:    "network",
			Action:      permissions.ActionDelete,
			Input: schema([]string{"network_id"}, mutatingProps(map[string]any{
				"network_id": prop("string", "Network identifier"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "network_id")
				if err != nil {
					return nil, err
				}
				if err := c.DeleteNetwork(ctx, id); err != nil {
					return nil, err
				}
				return map[string]any{"deleted": id}, nil
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "network_id")
				if err != nil {
					return nil, err
				}
				n, err := c.GetNetwork(ctx, id)
				if err != nil {
					return nil, err
				}
				return confirm.Delete("network", n.ID, n.Name, map[string]any{
					"name": n.Name, "subnet": n.Subnet, "vlan": n.VLAN,
				}), nil
			},
		},
	}
}

func networkFromArgs(args map[string]any) (controller.Network, error) {
	name, err := argString(args, "name")
	if err != nil {
		return controller.Network{}, err
	}
	subnet, err := argString(args, "subnet")
	if err != nil {
		return controller.Network{}, err
	}
	purpose := optString(args, "purpose")
	if purpose == "" {
		purpose = "corporate"
	}
	return controller.Network{
		Name:    name,
		Subnet:  subnet,
		VLAN:    optInt(args, "vlan", 0),
		Purpose: purpose,
		Enabled: true,
	}, nil
}

func networkUpdates(args map[string]any) map[string]any {
	updates := make(map[string]any)
	for _, key := range []string{"name", "subnet"} {
		if v, ok := args[key].(string); ok && v != "" {
			updates[key] = v
		}
	}
	if v, ok := args["vlan"].(float64); ok {
		updates["vlan"] = int(v)
	}
	if v, ok := args["enabled"].(bool); ok {
		updates["enabled"] = v
	}
	return updates
}
