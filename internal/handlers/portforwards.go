package handlers

import (
	"context"

	"netgate/internal/confirm"
	"netgate/internal/controller"
	"netgate/internal/permissions"
)

func portForwardDefinitions(c controller.Client) []*Definition {
	return []*Definition{
		{
			Name:        "netgate_list_port_forwards",
			Description: "List all port forwarding rules.",
			Category:    "port_forward",
			Action:      permissions.ActionRead,
			Input:       schema(nil, map[string]any{}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				forwards, err := c.ListPortForwards(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"port_forwards": forwards, "count": len(forwards)}, nil
			},
		},
		{
			Name:        "netgate_get_port_forward",
			Description: "Get a single port forwarding rule by id.",
			Category:    "port_forward",
			Action:      permissions.ActionRead,
			Input:       schema([]string{"forward_id"}, map[string]any{"forward_id": prop("string", "Port forward identifier")}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "forward_id")
				if err != nil {
					return nil, err
				}
				return c.GetPortForward(ctx, id)
			},
		},
		{
			Name:        "netgate_create_port_forward",
			Description: "Create a port forwarding rule (destination NAT).",
			Category:    "port_forward",
			Action:      permissions.ActionCreate,
			Input: schema([]string{"name", "dst_port", "fwd_ip"}, mutatingProps(map[string]any{
				"name":     prop("string", "Rule name"),
				"dst_port": prop("string", "External port"),
				"fwd_ip":   prop("string", "Internal destination IP"),
				"fwd_port": prop("string", "Internal port (defaults to dst_port)"),
				"protocol": map[string]any{"type": "string", "enum": []any{"tcp", "udp", "tcp_udp"}, "description": "Protocol"},
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				f, err := portForwardFromArgs(args)
				if err != nil {
					return nil, err
				}
				return c.CreatePortForward(ctx, f)
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				f, err := portForwardFromArgs(args)
				if err != nil {
					return nil, err
				}
				return confirm.Create("port_forward", f.Name, map[string]any{
					"name": f.Name, "dst_port": f.DstPort, "fwd_ip": f.FwdIP,
					"fwd_port": f.FwdPort, "protocol": f.Protocol,
				}, nil), nil
			},
		},
		{
			Name:        "netgate_toggle_port_forward",
			Description: "Enable or disable a port forwarding rule (flips its current state).",
			Category:    "port_forward",
			Action:      permissions.ActionUpdate,
			Input: schema([]string{"forward_id"}, mutatingProps(map[string]any{
				"forward_id": prop("string", "Port forward identifier"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "forward_id")
				if err != nil {
					return nil, err
				}
				f, err := c.GetPortForward(ctx, id)
				if err != nil {
					return nil, err
				}
				return c.SetPortForwardState(ctx, id, !f.Enabled)
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				id, err := argString(args, "forward_id")
				if err != nil {
					return nil, err
				}
				f, err := c.GetPortForward(ctx, id)
				if err != nil {
					return nil, err
				}
				return confirm.Toggle("port_forward", f.ID, f.Name, f.Enabled, map[string]any{"name": f.Name}), nil
			},
		},
	}
}

func portForwardFromArgs(args map[string]any) (controller.PortForward, error) {
	name, err := argString(args, "name")
	if err != nil {
		return controller.PortForward{}, err
	}
	dstPort, err := argString(args, "dst_port")
	if err != nil {
		return controller.PortForward{}, err
	}
	fwdIP, err := argString(args, "fwd_ip")
	if err != nil {
		return controller.PortForward{}, err
	}
	f := controller.PortForward{
		Name:     name,
		DstPort:  dstPort,
		FwdIP:    fwdIP,
		FwdPort:  optString(args, "fwd_port"),
		Protocol: optString(args, "protocol"),
		Enabled:  true,
	}
	if f.FwdPort == "" {
		f.FwdPort = f.DstPort
	}
	if f.Protocol == "" {
		f.Protocol = "tcp_udp"
	}
	return f, nil
}
