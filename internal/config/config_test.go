package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_CreatesDefaultIfMissing(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader("")
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Check defaults
	assert.Equal(t, DefaultNomadAddress, cfg.Nomad.Address)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultInterval, cfg.Reconcile.Interval)
	assert.Equal(t, DefaultTimeout, cfg.Registry.Timeout)
	assert.False(t, cfg.Nomad.EventStream)

	// Verify file was created
	_, err = os.Stat(loader.Path())
	assert.NoError(t, err)
}

func TestLoader_Load_ReadsExistingConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	configContent := `
nomad:
  address: http://nomad.internal:4646
  event_stream: true
server:
  listen: ":9100"
reconcile:
  interval: 5m
registry:
  timeout: 10s
  insecure: true
log:
  verbosity: 1
  json: true
`
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o644))

	loader, err := NewLoader(path)
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://nomad.internal:4646", cfg.Nomad.Address)
	assert.True(t, cfg.Nomad.EventStream)
	assert.Equal(t, ":9100", cfg.Server.Listen)
	assert.Equal(t, 5*time.Minute, cfg.Reconcile.Interval)
	assert.Equal(t, 10*time.Second, cfg.Registry.Timeout)
	assert.True(t, cfg.Registry.Insecure)
	assert.Equal(t, 1, cfg.Log.Verbosity)
	assert.True(t, cfg.Log.JSON)
}

func TestLoader_Load_EnvOverrides(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("DRIFTWATCH_NOMAD_ADDRESS", "http://override:4646")
	t.Setenv("DRIFTWATCH_RECONCILE_INTERVAL", "1m")

	loader, err := NewLoader("")
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://override:4646", cfg.Nomad.Address)
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval)
}

func TestLoader_Load_NomadAddrFallback(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("NOMAD_ADDR", "http://cluster:4646")

	loader, err := NewLoader("")
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://cluster:4646", cfg.Nomad.Address)
}

func TestConfig_Validate(t *testing.T) {
	valid := &Config{
		Nomad:     NomadConfig{Address: "http://localhost:4646"},
		Server:    ServerConfig{Listen: ":3000"},
		Reconcile: ReconcileConfig{Interval: 15 * time.Minute},
		Registry:  RegistryConfig{Timeout: 30 * time.Second},
	}
	assert.NoError(t, valid.Validate())

	t.Run("missing nomad address", func(t *testing.T) {
		cfg := *valid
		cfg.Nomad.Address = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("malformed nomad address", func(t *testing.T) {
		cfg := *valid
		cfg.Nomad.Address = "not a url"
		assert.Error(t, cfg.Validate())
	})

	t.Run("interval too short", func(t *testing.T) {
		cfg := *valid
		cfg.Reconcile.Interval = 100 * time.Millisecond
		assert.Error(t, cfg.Validate())
	})
}
