package handlers

import (
	"context"

	"netgate/internal/controller"
	"netgate/internal/permissions"
)

func statsDefinitions(c controller.Client) []*Definition {
	return []*Definition{
		{
			Name:        "netgate_get_top_clients",
			Description: "List the clients with the highest combined traffic, busiest first.",
			Category:    "stat",
			Action:      permissions.ActionRead,
			Input: schema(nil, map[string]any{
				"limit": prop("integer", "Maximum number of clients to return (default 10)"),
			}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				limit := optInt(args, "limit", 10)
				stations, err := c.TopStations(ctx, limit)
				if err != nil {
					return nil, err
				}
				return map[string]any{"clients": stations, "count": len(stations)}, nil
			},
		},
		{
			Name:        "netgate_get_system_stats",
			Description: "Get controller system statistics and subsystem health.",
			Category:    "stat",
			Action:      permissions.ActionRead,
			Input:       schema(nil, map[string]any{}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				info, err := c.SystemInfo(ctx)
				if err != nil {
					return nil, err
				}
				health, err := c.Health(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"system": info, "health": health}, nil
			},
		},
	}
}

func systemDefinitions(c controller.Client) []*Definition {
	return []*Definition{
		{
			Name:        "netgate_get_system_info",
			Description: "Get controller name, version and uptime.",
			Category:    "system",
			Action:      permissions.ActionRead,
			Input:       schema(nil, map[string]any{}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return c.SystemInfo(ctx)
			},
		},
		{
			Name:        "netgate_get_network_health",
			Description: "Get per-subsystem health (wan, lan, wlan, vpn).",
			Category:    "system",
			Action:      permissions.ActionRead,
			Input:       schema(nil, map[string]any{}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				health, err := c.Health(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"health": health}, nil
			},
		},
	}
}
