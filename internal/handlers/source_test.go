package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netgate/internal/controller"
	"netgate/internal/permissions"
)

func newBuiltin(t *testing.T) (*BuiltinSource, *controller.Simulator) {
	t.Helper()
	sim := controller.NewSimulator().Seed()
	return NewBuiltinSource(sim), sim
}

func TestBuiltinSourceResolvesEveryDefinition(t *testing.T) {
	source, _ := newBuiltin(t)
	ctx := context.Background()

	defs := source.Definitions()
	require.NotEmpty(t, defs)
	for _, d := range defs {
		h, err := source.ResolveHandler(ctx, d.Name)
		require.NoError(t, err, d.Name)
		require.NotNil(t, h.Execute, d.Name)
	}
}

func TestBuiltinSourceUnknownName(t *testing.T) {
	source, _ := newBuiltin(t)
	_, err := source.ResolveHandler(context.Background(), "netgate_nope")
	assert.Error(t, err)
}

// Every mutating definition must carry a preview path and the confirm flag
// in its schema; read definitions must carry neither.
func TestDefinitionConfirmationContract(t *testing.T) {
	source, _ := newBuiltin(t)

	for _, d := range source.Definitions() {
		props, _ := d.Input["properties"].(map[string]any)
		_, hasConfirm := props["confirm"]
		if d.Action == permissions.ActionRead {
			assert.Nil(t, d.Preview, "%s is read-only but has a preview", d.Name)
			assert.False(t, hasConfirm, "%s is read-only but takes confirm", d.Name)
		} else {
			assert.NotNil(t, d.Preview, "%s mutates but has no preview", d.Name)
			assert.True(t, hasConfirm, "%s mutates but lacks the confirm flag", d.Name)
		}
	}
}

func TestDefinitionNamesAndCategories(t *testing.T) {
	source, _ := newBuiltin(t)

	prev := ""
	for _, d := range source.Definitions() {
		assert.Contains(t, d.Name, "netgate_")
		assert.NotEmpty(t, d.Category, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
		assert.LessOrEqual(t, prev, d.Name, "definitions not sorted")
		prev = d.Name
	}
}

func TestManifestMatchesDefinitions(t *testing.T) {
	source, _ := newBuiltin(t)

	m := source.Manifest()
	require.NoError(t, m.Validate())
	require.Len(t, m.Tools, len(source.Definitions()))
	for _, entry := range m.Tools {
		assert.Equal(t, "builtin", entry.Source)
	}
}

// Previews must not change controller state.
func TestPreviewIsSideEffectFree(t *testing.T) {
	source, sim := newBuiltin(t)
	ctx := context.Background()

	h, err := source.ResolveHandler(ctx, "netgate_toggle_firewall_policy")
	require.NoError(t, err)

	before, err := sim.GetFirewallPolicy(ctx, "fp-1")
	require.NoError(t, err)

	_, err = h.Preview(ctx, map[string]any{"policy_id": "fp-1"})
	require.NoError(t, err)

	after, err := sim.GetFirewallPolicy(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestToggleExecuteFlipsState(t *testing.T) {
	source, sim := newBuiltin(t)
	ctx := context.Background()

	h, err := source.ResolveHandler(ctx, "netgate_toggle_firewall_policy")
	require.NoError(t, err)

	result, err := h.Execute(ctx, map[string]any{"policy_id": "fp-1"})
	require.NoError(t, err)
	p, ok := result.(controller.FirewallPolicy)
	require.True(t, ok)
	assert.False(t, p.Enabled)

	stored, err := sim.GetFirewallPolicy(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}

func TestBlockClientRoundTrip(t *testing.T) {
	source, sim := newBuiltin(t)
	ctx := context.Background()
	mac := "11:22:33:00:00:01"

	block, err := source.ResolveHandler(ctx, "netgate_block_client")
	require.NoError(t, err)
	_, err = block.Execute(ctx, map[string]any{"mac": mac})
	require.NoError(t, err)

	station, err := sim.GetStation(ctx, mac)
	require.NoError(t, err)
	assert.True(t, station.Blocked)

	unblock, err := source.ResolveHandler(ctx, "netgate_unblock_client")
	require.NoError(t, err)
	_, err = unblock.Execute(ctx, map[string]any{"mac": mac})
	require.NoError(t, err)

	station, err = sim.GetStation(ctx, mac)
	require.NoError(t, err)
	assert.False(t, station.Blocked)
}

func TestMultiSourceFirstWins(t *testing.T) {
	source, _ := newBuiltin(t)
	multi := MultiSource{source}

	h, err := multi.ResolveHandler(context.Background(), "netgate_list_devices")
	require.NoError(t, err)
	assert.NotNil(t, h.Execute)

	_, err = multi.ResolveHandler(context.Background(), "netgate_nope")
	assert.Error(t, err)
}
