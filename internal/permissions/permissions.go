// Package permissions implements the layered permission gate.
//
// A (category, action) pair resolves through a fixed precedence chain:
//
//  1. Environment override: NETGATE_PERMISSIONS_<CATEGORY>_<ACTION>
//  2. Config file: permissions.<category>.<action>
//  3. Config file: permissions.default.<action>
//  4. Hardcoded fallback: read allowed, everything else denied
//
// Delete actions resolve through the category's update rule. The two risk
// levels are deliberately conflated upstream; the gate keeps that behavior
// and logs whenever the aliasing is applied so the conflation stays visible.
//
// The gate is a pure function of the loaded rule set plus the process
// environment. It never touches the registry and is safe for concurrent use.
package permissions

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"netgate/internal/logging"
)

// Action is the closed set of operation verbs the gate distinguishes.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction validates an action identifier. Rule sets are validated with
// this at load time so typos surface at startup, not at first dispatch.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(s)) {
	case ActionRead:
		return ActionRead, nil
	case ActionCreate:
		return ActionCreate, nil
	case ActionUpdate:
		return ActionUpdate, nil
	case ActionDelete:
		return ActionDelete, nil
	}
	return "", fmt.Errorf("unknown action %q (want read, create, update or delete)", s)
}

// EnvPrefix is the prefix for permission override environment variables.
const EnvPrefix = "NETGATE_PERMISSIONS_"

// defaultKey is the config section holding cross-category defaults.
const defaultKey = "default"

// categoryKeys maps tool category shorthands to their config file keys.
// Unlisted categories map to themselves.
var categoryKeys = map[string]string{
	"firewall":     "firewall_policies",
	"port_forward": "port_forwards",
	"network":      "networks",
	"device":       "devices",
	"client":       "clients",
	"guest":        "guests",
	"event":        "events",
	"stat":         "stats",
	"route":        "routes",
	"qos":          "qos_rules",
	"vpn":          "vpn",
	"wlan":         "wlans",
}

// Rules is the permission section of the config file:
// category key -> action -> allowed.
type Rules map[string]map[string]bool

// Validate checks every action key against the closed action enum.
func (r Rules) Validate() error {
	for category, actions := range r {
		for action := range actions {
			if _, err := ParseAction(action); err != nil {
				return fmt.Errorf("permissions.%s: %w", category, err)
			}
		}
	}
	return nil
}

// Gate evaluates whether a (category, action) pair is allowed.
type Gate struct {
	rules atomic.Pointer[Rules]

	// getenv is swappable for tests; defaults to os.Getenv.
	getenv func(string) string
}

// NewGate builds a gate over the given rule set.
func NewGate(rules Rules) *Gate {
	g := &Gate{getenv: os.Getenv}
	g.rules.Store(&rules)
	return g
}

// Replace swaps in a new rule set. Used by the config watcher; in-flight
// Allowed calls see either the old or the new set, never a mix.
func (g *Gate) Replace(rules Rules) {
	g.rules.Store(&rules)
	logging.Get(logging.CategoryPermissions).Info("permission rules replaced (%d categories)", len(rules))
}

// Verdict reports how a permission decision was reached.
type Verdict struct {
	Allowed bool
	Source  string // "env override", "category rule", "default rule", "fallback"
}

// Allowed reports whether the action is permitted for the category.
func (g *Gate) Allowed(category string, action Action) bool {
	return g.Explain(category, action).Allowed
}

// Explain resolves the precedence chain and reports which layer decided.
func (g *Gate) Explain(category string, action Action) Verdict {
	log := logging.Get(logging.CategoryPermissions)

	// Delete shares the category's update rule.
	if action == ActionDelete {
		log.Debug("delete action for category %q evaluated via update rule", category)
		action = ActionUpdate
	}

	key := categoryKeys[category]
	if key == "" {
		key = category
	}

	// 1. Environment override.
	envVar := EnvPrefix + strings.ToUpper(key) + "_" + strings.ToUpper(string(action))
	if raw := g.getenv(envVar); raw != "" {
		allowed := Truthy(raw)
		log.Info("override %s=%s -> %v", envVar, raw, allowed)
		return Verdict{Allowed: allowed, Source: "env override"}
	}

	rules := *g.rules.Load()

	// 2. Category-specific rule.
	if actions, ok := rules[key]; ok {
		if allowed, ok := actions[string(action)]; ok {
			return Verdict{Allowed: allowed, Source: "category rule"}
		}
	}

	// 3. Cross-category default.
	if defaults, ok := rules[defaultKey]; ok {
		if allowed, ok := defaults[string(action)]; ok {
			return Verdict{Allowed: allowed, Source: "default rule"}
		}
	}

	// 4. Hardcoded fallback: reads allowed, mutations denied.
	if action == ActionRead {
		return Verdict{Allowed: true, Source: "fallback"}
	}
	log.Warn("no rule for category %q action %q, denying", category, action)
	return Verdict{Allowed: false, Source: "fallback"}
}

// Truthy parses a string-typed override value. Matches the override
// contract: true/1/yes/on (case-insensitive) allow, everything else denies.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
