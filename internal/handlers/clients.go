package handlers

import (
	"context"

	"netgate/internal/confirm"
	"netgate/internal/controller"
	"netgate/internal/permissions"
)

func clientDefinitions(c controller.Client) []*Definition {
	return []*Definition{
		{
			Name:        "netgate_list_clients",
			Description: "List all known client devices (stations) with addresses and block state.",
			Category:    "client",
			Action:      permissions.ActionRead,
			Input:       schema(nil, map[string]any{}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				stations, err := c.ListStations(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"clients": stations, "count": len(stations)}, nil
			},
		},
		{
			Name:        "netgate_get_client",
			Description: "Get details of a client device by MAC address.",
			Category:    "client",
			Action:      permissions.ActionRead,
			Input:       schema([]string{"mac"}, map[string]any{"mac": prop("string", "Client MAC address")}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				mac, err := argString(args, "mac")
				if err != nil {
					return nil, err
				}
				return c.GetStation(ctx, mac)
			},
		},
		{
			Name:        "netgate_block_client",
			Description: "Block a client device from the network.",
			Category:    "client",
			Action:      permissions.ActionUpdate,
			Input: schema([]string{"mac"}, mutatingProps(map[string]any{
				"mac": prop("string", "Client MAC address"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				mac, err := argString(args, "mac")
				if err != nil {
					return nil, err
				}
				return c.BlockStation(ctx, mac)
			},
			Preview: blockPreview(c, true),
		},
		{
			Name:        "netgate_unblock_client",
			Description: "Unblock a previously blocked client device.",
			Category:    "client",
			Action:      permissions.ActionUpdate,
			Input: schema([]string{"mac"}, mutatingProps(map[string]any{
				"mac": prop("string", "Client MAC address"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				mac, err := argString(args, "mac")
				if err != nil {
					return nil, err
				}
				return c.UnblockStation(ctx, mac)
			},
			Preview: blockPreview(c, false),
		},
	}
}

func blockPreview(c controller.Client, block bool) func(ctx context.Context, args map[string]any) (any, error) {
	action := "block"
	if !block {
		action = "unblock"
	}
	return func(ctx context.Context, args map[string]any) (any, error) {
		mac, err := argString(args, "mac")
		if err != nil {
			return nil, err
		}
		st, err := c.GetStation(ctx, mac)
		if err != nil {
			return nil, err
		}
		return confirm.Response(action, "client", st.MAC, st.Hostname,
			map[string]any{"blocked": st.Blocked, "ip": st.IP},
			map[string]any{"blocked": block}, nil), nil
	}
}
