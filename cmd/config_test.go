package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-chronometer/qchrono/sim/peer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qchrono.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultRunConfig_IsValid(t *testing.T) {
	cfg := DefaultRunConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, peer.DefaultPort, cfg.Peer.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Tick.Interval)
	assert.True(t, cfg.Peer.Enabled)
}

func TestLoadRunConfig_OverlaysOnlyPresentKeys(t *testing.T) {
	// GIVEN a file that sets the tick interval and peer port only
	path := writeConfig(t, "tick:\n  interval: 100ms\npeer:\n  port: 6000\n")

	// WHEN it is loaded over the defaults
	cfg, err := LoadRunConfig(path, DefaultRunConfig())

	// THEN the listed keys change and everything else keeps its default
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.Tick.Interval)
	assert.Equal(t, 6000, cfg.Peer.Port)
	assert.InDelta(t, 0.05, cfg.Tick.DT, 1e-12)
	assert.Equal(t, "255.255.255.255", cfg.Peer.BroadcastAddress)
	assert.True(t, cfg.Peer.Enabled)
}

func TestLoadRunConfig_UnknownKeyIsError(t *testing.T) {
	// GIVEN a typo in a key name
	path := writeConfig(t, "tick:\n  intervall: 100ms\n")

	// WHEN loaded
	_, err := LoadRunConfig(path, DefaultRunConfig())

	// THEN strict parsing rejects it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intervall")
}

func TestLoadRunConfig_EmptyFileKeepsBase(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := LoadRunConfig(path, DefaultRunConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultRunConfig(), cfg)
}

func TestLoadRunConfig_MissingFile(t *testing.T) {
	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "absent.yaml"), DefaultRunConfig())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRunConfig_ExampleFileIsValid(t *testing.T) {
	path := "../qchrono.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("qchrono.yaml not found, skipping")
	}
	cfg, err := LoadRunConfig(path, DefaultRunConfig())
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestRunConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
	}{
		{"bad log level", func(c *RunConfig) { c.LogLevel = "loud" }},
		{"zero interval", func(c *RunConfig) { c.Tick.Interval = 0 }},
		{"negative dt", func(c *RunConfig) { c.Tick.DT = -0.05 }},
		{"port out of range", func(c *RunConfig) { c.Peer.Port = 70000 }},
		{"empty broadcast address", func(c *RunConfig) { c.Peer.BroadcastAddress = "" }},
		{"negative threshold", func(c *RunConfig) { c.Peer.Threshold = -1 }},
		{"autosave without db", func(c *RunConfig) { c.Slots.Path = ""; c.Slots.Autosave = "quick" }},
		{"unknown trace level", func(c *RunConfig) { c.Trace.Level = "verbose" }},
		{"negative trace capacity", func(c *RunConfig) { c.Trace.Capacity = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRunConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRunConfig_DisabledPeerSkipsPeerValidation(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.Peer.Enabled = false
	cfg.Peer.Port = -1
	assert.NoError(t, cfg.Validate())
}

func TestApplyRunFlags_OnlyChangedFlagsOverride(t *testing.T) {
	// GIVEN a file config with a custom port and tick
	cfg := DefaultRunConfig()
	cfg.Peer.Port = 6000
	cfg.Tick.Interval = 100 * time.Millisecond

	// WHEN only --no-network and --seed are given
	require.NoError(t, runCmd.ParseFlags([]string{"--no-network", "--seed", "7", "--trace-level", "ticks"}))
	applyRunFlags(runCmd, &cfg)

	// THEN those override and the file values survive
	assert.False(t, cfg.Peer.Enabled)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, "ticks", cfg.Trace.Level)
	assert.Equal(t, 6000, cfg.Peer.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.Tick.Interval)
}
