package gateway

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netgate/internal/controller"
	"netgate/internal/handlers"
	"netgate/internal/jobs"
	"netgate/internal/permissions"
	"netgate/internal/registry"
)

func newTestGateway(t *testing.T, rules permissions.Rules, opts ...Option) (*Gateway, *controller.Simulator) {
	t.Helper()

	sim := controller.NewSimulator().Seed()
	source := handlers.NewBuiltinSource(sim)
	reg := registry.New(permissions.NewGate(rules), source)
	for _, d := range source.Definitions() {
		_, err := reg.Register(d.Descriptor())
		require.NoError(t, err)
	}

	g := New(reg, opts...)
	require.NoError(t, g.RegisterMetaTools())
	t.Cleanup(g.Jobs().Wait)
	return g, sim
}

// allowAll permits every action on every category.
var allowAll = permissions.Rules{
	"default": {"read": true, "create": true, "update": true, "delete": true},
}

func TestCallToolSuccessShape(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)

	resp := g.CallTool(context.Background(), "netgate_list_firewall_policies", nil)
	require.Equal(t, true, resp["success"])

	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "data should be the handler payload, got %T", resp["data"])
	assert.Equal(t, 2, data["count"])
}

func TestCallToolUnknownOperation(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)

	resp := g.CallTool(context.Background(), "netgate_no_such_tool", nil)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, string(CodeUnknownOperation), resp["code"])
	assert.Contains(t, resp["error"], "netgate_no_such_tool")
}

func TestCallToolValidation(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)

	resp := g.CallTool(context.Background(), "netgate_get_firewall_policy", map[string]any{})
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, string(CodeValidation), resp["code"])
	assert.Contains(t, resp["error"], "policy_id")
}

// A denied tool stays visible in discovery but every dispatch attempt is
// rejected with the same permission error.
func TestDeniedToolVisibleButNotInvocable(t *testing.T) {
	rules := permissions.Rules{
		"default":           {"read": true, "create": true, "update": true},
		"firewall_policies": {"update": false},
	}
	g, _ := newTestGateway(t, rules)

	var status string
	for _, info := range g.ToolIndex().Tools {
		if info.Name == "netgate_toggle_firewall_policy" {
			status = info.Status
		}
	}
	require.Equal(t, string(registry.StatusDenied), status)

	args := map[string]any{"policy_id": "fp-1", "confirm": true}
	first := g.CallTool(context.Background(), "netgate_toggle_firewall_policy", args)
	second := g.CallTool(context.Background(), "netgate_toggle_firewall_policy", args)

	assert.Equal(t, false, first["success"])
	assert.Equal(t, string(CodePermissionDenied), first["code"])
	assert.Contains(t, first["error"], "firewall")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("denied dispatch not stable (-first +second):\n%s", diff)
	}
}

// Unconfirmed mutating calls return a preview and leave state untouched;
// the confirmed call then executes for real.
func TestToggleConfirmationFlow(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)
	ctx := context.Background()

	preview := g.CallTool(ctx, "netgate_toggle_firewall_policy", map[string]any{"policy_id": "fp-1"})
	require.Equal(t, false, preview["success"])
	require.Equal(t, true, preview["requires_confirmation"])
	assert.Equal(t, "fp-1", preview["resource_id"])

	pv, ok := preview["preview"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"enabled": false}, pv["proposed"])

	// Preview is pure: the policy is still enabled and a repeated preview
	// is identical.
	again := g.CallTool(ctx, "netgate_toggle_firewall_policy", map[string]any{"policy_id": "fp-1"})
	if diff := cmp.Diff(preview, again); diff != "" {
		t.Fatalf("preview changed state (-first +again):\n%s", diff)
	}

	executed := g.CallTool(ctx, "netgate_toggle_firewall_policy", map[string]any{"policy_id": "fp-1", "confirm": true})
	require.Equal(t, true, executed["success"])
	p, ok := executed["data"].(controller.FirewallPolicy)
	require.True(t, ok, "data should be the updated policy, got %T", executed["data"])
	assert.False(t, p.Enabled)
}

func TestAutoConfirmSkipsPreview(t *testing.T) {
	g, _ := newTestGateway(t, allowAll, WithAutoConfirm(true))

	resp := g.CallTool(context.Background(), "netgate_toggle_firewall_policy", map[string]any{"policy_id": "fp-2"})
	require.Equal(t, true, resp["success"])
	p := resp["data"].(controller.FirewallPolicy)
	assert.False(t, p.Enabled)
}

func TestAutoConfirmEnvVariable(t *testing.T) {
	t.Setenv("NETGATE_AUTO_CONFIRM", "true")
	g, _ := newTestGateway(t, allowAll)

	resp := g.CallTool(context.Background(), "netgate_toggle_firewall_policy", map[string]any{"policy_id": "fp-2"})
	assert.Equal(t, true, resp["success"])
}

// Mutating tools without a dedicated preview path get the generic preview
// carrying the arguments that would be applied.
func TestGenericPreviewForHandlerWithoutOne(t *testing.T) {
	gate := permissions.NewGate(allowAll)
	reg := registry.New(gate, nil)
	_, err := reg.Register(&registry.Descriptor{
		Name:        "demo_update_thing",
		Category:    "network",
		Action:      permissions.ActionUpdate,
		InputSchema: map[string]any{"type": "object"},
		Handler: &registry.Handler{
			Execute: func(ctx context.Context, args map[string]any) (any, error) {
				return "executed", nil
			},
		},
	})
	require.NoError(t, err)
	g := New(reg)

	resp := g.CallTool(context.Background(), "demo_update_thing", map[string]any{"field": "value"})
	require.Equal(t, true, resp["requires_confirmation"])
	pv := resp["preview"].(map[string]any)
	assert.Equal(t, map[string]any{"field": "value"}, pv["proposed"])

	confirmed := g.CallTool(context.Background(), "demo_update_thing", map[string]any{"field": "value", "confirm": true})
	assert.Equal(t, "executed", confirmed["data"])
}

func TestToolIndexShape(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)

	index := g.ToolIndex()
	require.Equal(t, len(index.Tools), index.Count)
	require.NotEmpty(t, index.Tools)

	names := make(map[string]bool, len(index.Tools))
	prev := ""
	for _, info := range index.Tools {
		assert.NotEmpty(t, info.Name)
		assert.NotNil(t, info.Schema.Input, "%s has no input schema", info.Name)
		assert.NotEmpty(t, info.Status)
		assert.False(t, names[info.Name], "duplicate listing for %s", info.Name)
		names[info.Name] = true
		assert.LessOrEqual(t, prev, info.Name, "listing not sorted")
		prev = info.Name
	}

	// Discovery includes the meta tools themselves.
	assert.True(t, names["netgate_tool_index"])
	assert.True(t, names["netgate_async_start_batch"])
}

// Discovery is idempotent and never flips a status by itself.
func TestToolIndexIdempotent(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)

	first := g.ToolIndex()
	second := g.ToolIndex()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("discovery not stable (-first +second):\n%s", diff)
	}
}

func TestAsyncStartAndStatus(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)

	resp := g.AsyncStart("netgate_list_networks", nil)
	id, ok := resp["jobId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	g.Jobs().Wait()

	status := g.AsyncStatus(id)
	assert.Equal(t, string(jobs.StatusDone), status["status"])
	assert.Equal(t, "netgate_list_networks", status["tool"])
	assert.NotNil(t, status["result"])
}

func TestAsyncStatusUnknownJob(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)

	status := g.AsyncStatus("nope")
	assert.Equal(t, "unknown", status["status"])
	assert.Equal(t, "nope", status["jobId"])
}

// A batch of three yields three index-aligned job refs, and each job's
// terminal result matches what a direct synchronous dispatch produces.
func TestAsyncBatchMatchesDirectDispatch(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)
	ctx := context.Background()

	ops := []jobs.Operation{
		{Tool: "netgate_list_networks"},
		{Tool: "netgate_get_device", Arguments: map[string]any{"mac": "aa:bb:cc:00:00:01"}},
		{Tool: "netgate_get_system_info"},
	}

	resp := g.AsyncStartBatch(ops)
	refs, ok := resp["jobs"].([]BatchJobRef)
	require.True(t, ok)
	require.Len(t, refs, len(ops))
	for i, ref := range refs {
		assert.Equal(t, i, ref.Index)
		assert.Equal(t, ops[i].Tool, ref.Tool)
		assert.NotEmpty(t, ref.JobID)
	}

	g.Jobs().Wait()

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.JobID
	}
	statuses := g.AsyncStatusBatch(ids)["jobs"].([]map[string]any)
	require.Len(t, statuses, len(ops))

	for i, status := range statuses {
		require.Equal(t, string(jobs.StatusDone), status["status"], "job %d", i)
		direct, err := g.execute(ctx, ops[i].Tool, ops[i].Arguments)
		require.NoError(t, err)
		if diff := cmp.Diff(direct, status["result"]); diff != "" {
			t.Errorf("job %d result differs from direct dispatch (-direct +job):\n%s", i, diff)
		}
	}
}

// One bad operation in a batch fails alone; siblings complete normally.
func TestAsyncBatchFailureIsolation(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)

	resp := g.AsyncStartBatch([]jobs.Operation{
		{Tool: "netgate_list_networks"},
		{Tool: "netgate_no_such_tool"},
		{Tool: "netgate_get_network", Arguments: map[string]any{"network_id": "missing"}},
	})
	refs := resp["jobs"].([]BatchJobRef)
	g.Jobs().Wait()

	ok, _ := g.Jobs().Status(refs[0].JobID)
	unknown, _ := g.Jobs().Status(refs[1].JobID)
	failed, _ := g.Jobs().Status(refs[2].JobID)

	assert.Equal(t, jobs.StatusDone, ok.Status)
	assert.Equal(t, jobs.StatusError, unknown.Status)
	assert.Contains(t, unknown.Error, "unknown operation")
	assert.Equal(t, jobs.StatusError, failed.Status)
}

// Jobs run through the same gate as synchronous calls: a denied tool
// submitted as a job lands in error, never in done.
func TestAsyncRespectsPermissionGate(t *testing.T) {
	rules := permissions.Rules{
		"default":  {"read": true, "update": false},
		"networks": {"update": false},
	}
	g, _ := newTestGateway(t, rules)

	resp := g.AsyncStart("netgate_update_network", map[string]any{"network_id": "net-lan", "name": "x", "confirm": true})
	g.Jobs().Wait()

	status := g.AsyncStatus(resp["jobId"].(string))
	assert.Equal(t, string(jobs.StatusError), status["status"])
	assert.Contains(t, status["error"], "not permitted")
}

// The meta tools are dispatchable through CallTool like any other tool.
func TestMetaToolsDispatchable(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)
	ctx := context.Background()

	resp := g.CallTool(ctx, "netgate_tool_index", nil)
	require.Equal(t, true, resp["success"])
	index, ok := resp["data"].(Index)
	require.True(t, ok)
	assert.NotZero(t, index.Count)

	started := g.CallTool(ctx, "netgate_async_start", map[string]any{"tool": "netgate_get_system_info"})
	require.Equal(t, true, started["success"])
	id := started["data"].(map[string]any)["jobId"].(string)
	g.Jobs().Wait()

	polled := g.CallTool(ctx, "netgate_async_status", map[string]any{"jobId": id})
	require.Equal(t, true, polled["success"])
	assert.Equal(t, string(jobs.StatusDone), polled["data"].(map[string]any)["status"])
}

// Validation failures raised inside a handler keep their classification
// through the handler-error wrap.
func TestMetaBatchArgumentValidation(t *testing.T) {
	g, _ := newTestGateway(t, allowAll)
	ctx := context.Background()

	resp := g.CallTool(ctx, "netgate_async_start_batch", map[string]any{"operations": "not-an-array"})
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, string(CodeValidation), resp["code"])

	badItem := g.CallTool(ctx, "netgate_async_start_batch", map[string]any{"operations": []any{map[string]any{"arguments": map[string]any{}}}})
	assert.Equal(t, string(CodeValidation), badItem["code"])

	missing := g.CallTool(ctx, "netgate_async_start_batch", map[string]any{})
	assert.Equal(t, string(CodeValidation), missing["code"])
}
