package handlers

import (
	"context"

	"netgate/internal/confirm"
	"netgate/internal/controller"
	"netgate/internal/permissions"
)

func deviceDefinitions(c controller.Client) []*Definition {
	return []*Definition{
		{
			Name:        "netgate_list_devices",
			Description: "List all managed network devices (switches, APs, gateways).",
			Category:    "device",
			Action:      permissions.ActionRead,
			Input:       schema(nil, map[string]any{}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				devices, err := c.ListDevices(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"devices": devices, "count": len(devices)}, nil
			},
		},
		{
			Name:        "netgate_get_device",
			Description: "Get details of a managed device by MAC address.",
			Category:    "device",
			Action:      permissions.ActionRead,
			Input:       schema([]string{"mac"}, map[string]any{"mac": prop("string", "Device MAC address")}),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				mac, err := argString(args, "mac")
				if err != nil {
					return nil, err
				}
				return c.GetDevice(ctx, mac)
			},
		},
		{
			Name:        "netgate_reboot_device",
			Description: "Reboot a managed device. Long-running; well suited to async submission.",
			Category:    "device",
			Action:      permissions.ActionUpdate,
			Input: schema([]string{"mac"}, mutatingProps(map[string]any{
				"mac": prop("string", "Device MAC address"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				mac, err := argString(args, "mac")
				if err != nil {
					return nil, err
				}
				if err := c.RebootDevice(ctx, mac); err != nil {
					return nil, err
				}
				return map[string]any{"mac": mac, "state": "rebooting"}, nil
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				mac, err := argString(args, "mac")
				if err != nil {
					return nil, err
				}
				d, err := c.GetDevice(ctx, mac)
				if err != nil {
					return nil, err
				}
				return confirm.Response("reboot", "device", d.MAC, d.Name,
					map[string]any{"state": d.State, "uptime_sec": d.UptimeSec},
					map[string]any{"state": "rebooting"}, nil), nil
			},
		},
		{
			Name:        "netgate_rename_device",
			Description: "Set the display name of a managed device.",
			Category:    "device",
			Action:      permissions.ActionUpdate,
			Input: schema([]string{"mac", "name"}, mutatingProps(map[string]any{
				"mac":  prop("string", "Device MAC address"),
				"name": prop("string", "New device name"),
			})),
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				mac, err := argString(args, "mac")
				if err != nil {
					return nil, err
				}
				name, err := argString(args, "name")
				if err != nil {
					return nil, err
				}
				return c.RenameDevice(ctx, mac, name)
			},
			Preview: func(ctx context.Context, args map[string]any) (any, error) {
				mac, err := argString(args, "mac")
				if err != nil {
					return nil, err
				}
				name, err := argString(args, "name")
				if err != nil {
					return nil, err
				}
				d, err := c.GetDevice(ctx, mac)
				if err != nil {
					return nil, err
				}
				return confirm.Update("device", d.MAC, d.Name,
					map[string]any{"name": d.Name},
					map[string]any{"name": name}), nil
			},
		},
	}
}
