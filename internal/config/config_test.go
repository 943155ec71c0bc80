package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netgate/internal/permissions"
)

func TestDefaultsAreSafe(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	gate := permissions.NewGate(cfg.Permissions)
	assert.True(t, gate.Allowed("firewall", permissions.ActionRead))
	assert.False(t, gate.Allowed("firewall", permissions.ActionCreate))
	assert.False(t, gate.Allowed("firewall", permissions.ActionUpdate))
	assert.False(t, gate.Allowed("firewall", permissions.ActionDelete))
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ModeEager, cfg.Gateway.Mode)
	assert.Equal(t, "netgate", cfg.Name)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
name: testgate
gateway:
  mode: lazy
  manifest_path: /tmp/manifest.yaml
permissions:
  default:
    read: true
    update: true
  firewall_policies:
    update: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "testgate", cfg.Name)
	assert.Equal(t, ModeLazy, cfg.Gateway.Mode)

	gate := permissions.NewGate(cfg.Permissions)
	assert.True(t, gate.Allowed("network", permissions.ActionUpdate))
	assert.False(t, gate.Allowed("firewall", permissions.ActionUpdate))
}

func TestLoadRejectsBadMode(t *testing.T) {
	_, err := Load(writeConfig(t, "gateway:\n  mode: sometimes\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sometimes")
}

func TestLoadRejectsBadAction(t *testing.T) {
	_, err := Load(writeConfig(t, `
permissions:
  firewall_policies:
    updat: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "updat")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "permissions: [not a map"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NETGATE_MODE", "lazy")
	t.Setenv("NETGATE_AUTO_CONFIRM", "yes")
	t.Setenv("NETGATE_STATE_DIR", "/tmp/ng-state")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ModeLazy, cfg.Gateway.Mode)
	assert.True(t, cfg.Gateway.AutoConfirm)
	assert.Equal(t, "/tmp/ng-state", cfg.Logging.StateDir)
}

// The missing-file path must still run validation, so a bad env override
// fails startup the same way a bad file does.
func TestEnvOverridesValidatedWithoutFile(t *testing.T) {
	t.Setenv("NETGATE_MODE", "sometimes")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sometimes")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Name = "saved"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Name)
}

func TestWatchSwapsRulesOnChange(t *testing.T) {
	path := writeConfig(t, `
permissions:
  default:
    read: true
    update: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	gate := permissions.NewGate(cfg.Permissions)
	require.False(t, gate.Allowed("network", permissions.ActionUpdate))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, path, gate)
	}()

	// Give the watcher time to register before the write.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`
permissions:
  default:
    read: true
    update: true
`), 0o644))

	require.Eventually(t, func() bool {
		return gate.Allowed("network", permissions.ActionUpdate)
	}, 5*time.Second, 50*time.Millisecond, "rules never reloaded")

	cancel()
	<-done
}

func TestWatchKeepsRulesOnBrokenReload(t *testing.T) {
	path := writeConfig(t, `
permissions:
  default:
    read: true
    update: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	gate := permissions.NewGate(cfg.Permissions)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, path, gate)
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("permissions: [broken"), 0o644))

	// The broken file must not change decisions.
	time.Sleep(2 * debounce)
	assert.True(t, gate.Allowed("network", permissions.ActionUpdate))

	cancel()
	<-done
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
