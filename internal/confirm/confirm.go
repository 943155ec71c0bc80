// Package confirm implements the preview-then-confirm protocol for
// mutating tools.
//
// A mutating tool called with confirm=false never reaches its real handler;
// it runs a side-effect-free preview path instead and returns the intended
// changes with requires_confirmation=true. Calling again with confirm=true
// executes for real. The preview path being side-effect free is a contract
// on every handler, not something this package can enforce structurally.
//
// Setting NETGATE_AUTO_CONFIRM=true (or gateway.auto_confirm in the config)
// forces every call down the confirmed path. This exists for unattended
// automation and removes the safety guarantee entirely; treat it the way
// you would treat running with --force everywhere.
package confirm

import (
	"fmt"
	"os"

	"netgate/internal/logging"
	"netgate/internal/permissions"
)

// EnvAutoConfirm is the global auto-confirm override variable.
const EnvAutoConfirm = "NETGATE_AUTO_CONFIRM"

// AutoConfirmEnv reports whether the environment forces auto-confirm.
func AutoConfirmEnv() bool {
	return permissions.Truthy(os.Getenv(EnvAutoConfirm))
}

// Requested extracts the confirm flag from call arguments. Absent or
// non-boolean values mean false.
func Requested(args map[string]any) bool {
	v, ok := args["confirm"]
	if !ok {
		return false
	}
	switch c := v.(type) {
	case bool:
		return c
	case string:
		return permissions.Truthy(c)
	}
	return false
}

// Response builds the standard preview payload for an unconfirmed call.
// Current and proposed snapshots are recomputed on every unconfirmed call;
// nothing here is persisted.
func Response(action, resourceType, resourceID, resourceName string, current, proposed map[string]any, warnings []string) map[string]any {
	resp := map[string]any{
		"success":               false,
		"requires_confirmation": true,
		"action":                action,
		"resource_type":         resourceType,
		"preview": map[string]any{
			"current":  current,
			"proposed": proposed,
		},
		"message": "Review the changes above. Set confirm=true to execute.",
	}
	if resourceID != "" {
		resp["resource_id"] = resourceID
	}
	if resourceName != "" {
		resp["resource_name"] = resourceName
	}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	logging.Get(logging.CategoryConfirm).Debug("preview built for %s %s (id=%s)", action, resourceType, resourceID)
	return resp
}

// Toggle builds a preview for enable/disable flips.
func Toggle(resourceType, resourceID, resourceName string, currentEnabled bool, extra map[string]any) map[string]any {
	current := map[string]any{"enabled": currentEnabled}
	for k, v := range extra {
		current[k] = v
	}
	proposed := map[string]any{"enabled": !currentEnabled}

	resp := Response("toggle", resourceType, resourceID, resourceName, current, proposed, nil)

	newState := "enabled"
	if currentEnabled {
		newState = "disabled"
	}
	name := resourceID
	if resourceName != "" {
		name = fmt.Sprintf("%q", resourceName)
	}
	resp["message"] = fmt.Sprintf("Will %s %s %s. Set confirm=true to execute.", newState, resourceType, name)
	return resp
}

// Update builds a preview for field updates. Only fields present in the
// update set are echoed from the current state.
func Update(resourceType, resourceID, resourceName string, current, updates map[string]any) map[string]any {
	relevant := make(map[string]any, len(updates))
	fields := make([]string, 0, len(updates))
	for k := range updates {
		relevant[k] = current[k]
		fields = append(fields, k)
	}

	resp := Response("update", resourceType, resourceID, resourceName, relevant, updates, nil)

	name := resourceID
	if resourceName != "" {
		name = fmt.Sprintf("%q", resourceName)
	}
	resp["message"] = fmt.Sprintf("Will update %d field(s) on %s %s. Set confirm=true to execute.", len(fields), resourceType, name)
	return resp
}

// Create builds a preview for resource creation. There is no current state;
// the preview carries the full payload that would be created.
func Create(resourceType, resourceName string, data map[string]any, warnings []string) map[string]any {
	resp := map[string]any{
		"success":               false,
		"requires_confirmation": true,
		"action":                "create",
		"resource_type":         resourceType,
		"preview": map[string]any{
			"will_create": data,
		},
		"message": fmt.Sprintf("Will create new %s. Set confirm=true to execute.", resourceType),
	}
	if resourceName != "" {
		resp["resource_name"] = resourceName
		resp["message"] = fmt.Sprintf("Will create %s %q. Set confirm=true to execute.", resourceType, resourceName)
	}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	return resp
}

// Delete builds a preview for resource deletion.
func Delete(resourceType, resourceID, resourceName string, current map[string]any) map[string]any {
	resp := Response("delete", resourceType, resourceID, resourceName, current, map[string]any{}, nil)
	name := resourceID
	if resourceName != "" {
		name = fmt.Sprintf("%q", resourceName)
	}
	resp["message"] = fmt.Sprintf("Will delete %s %s. This cannot be undone. Set confirm=true to execute.", resourceType, name)
	return resp
}
