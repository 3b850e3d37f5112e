package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tzspd/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
tzspd:
  log:
    level: debug
  metrics:
    enabled: false
    listen: "127.0.0.1:9200"
  listener:
    workers: 4
    batch_size: 16
  profiles:
    - name: edge
      description: edge probe
      enable: true
      host: 127.0.0.1
      port: 37009
      protocol_type: 1
      capture_plan: sip-to-hep
    - name: lab
      enable: false
      capture_plan: sip-to-hep
  capture_plans:
    sip-to-hep:
      - action: sip
      - action: hep
        options:
          address: "10.0.0.5:9060"
          capture_id: 2001
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9200", cfg.Metrics.Listen)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 4, cfg.Listener.Workers)
	assert.Equal(t, 16, cfg.Listener.BatchSize)
	assert.Equal(t, 65535, cfg.Listener.MaxDatagram)

	require.Len(t, cfg.Profiles, 2)
	edge := cfg.Profiles[0]
	assert.Equal(t, "edge", edge.Name)
	assert.Equal(t, "127.0.0.1:37009", edge.Addr())
	assert.Equal(t, uint8(1), edge.ProtocolType)

	plan := cfg.CapturePlans["sip-to-hep"]
	require.Len(t, plan, 2)
	assert.Equal(t, "sip", plan[0].Action)
	assert.Equal(t, "hep", plan[1].Action)
	assert.Equal(t, "10.0.0.5:9060", plan[1].Options["address"])
}

func TestLoadProfileDefaults(t *testing.T) {
	path := writeConfig(t, `
tzspd:
  profiles:
    - name: only
      enable: true
      capture_plan: p
  capture_plans:
    p:
      - action: log
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Profiles, 1)

	p := cfg.Profiles[0]
	assert.Equal(t, DefaultHost, p.Host)
	assert.Equal(t, DefaultPort, p.Port)
	assert.Equal(t, uint8(DefaultProtocolType), p.ProtocolType)
	assert.Equal(t, "0.0.0.0:37008", p.Addr())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "invalid log level",
			content: `
tzspd:
  log:
    level: loud
`,
		},
		{
			name: "file output without path",
			content: `
tzspd:
  log:
    outputs:
      file:
        enabled: true
        path: ""
`,
		},
		{
			name: "unknown capture plan",
			content: `
tzspd:
  profiles:
    - name: a
      enable: true
      capture_plan: missing
`,
		},
		{
			name: "duplicate profile",
			content: `
tzspd:
  profiles:
    - name: a
      port: 1000
    - name: a
      port: 1001
`,
		},
		{
			name: "port out of range",
			content: `
tzspd:
  profiles:
    - name: a
      port: 70000
`,
		},
		{
			name: "host is not an ip",
			content: `
tzspd:
  profiles:
    - name: a
      host: probe.example.com
`,
		},
		{
			name: "profile without name",
			content: `
tzspd:
  profiles:
    - port: 1000
`,
		},
		{
			name: "plan step without action",
			content: `
tzspd:
  capture_plans:
    p:
      - options:
          level: info
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrConfigInvalid)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
tzspd:
  log:
    level: info
`)
	t.Setenv("TZSPD_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestListenerBoundsClamped(t *testing.T) {
	cfg := Default()
	cfg.Listener.BatchSize = 0
	cfg.Listener.MaxDatagram = 1 << 20
	cfg.Listener.QueueSize = -3

	require.NoError(t, cfg.ValidateAndApplyDefaults())
	assert.Equal(t, 1, cfg.Listener.BatchSize)
	assert.Equal(t, 65535, cfg.Listener.MaxDatagram)
	assert.Equal(t, 0, cfg.Listener.QueueSize)
}

func TestEnabledProfiles(t *testing.T) {
	cfg := &GlobalConfig{
		Log: LogConfig{Level: "info"},
		Profiles: []Profile{
			{Name: "a", Enable: true},
			{Name: "b", Enable: false},
			{Name: "c", Enable: true},
		},
	}
	require.NoError(t, cfg.ValidateAndApplyDefaults())

	enabled := cfg.EnabledProfiles()
	require.Len(t, enabled, 2)
	assert.Equal(t, "a", enabled[0].Name)
	assert.Equal(t, "c", enabled[1].Name)

	// returned profiles are copies
	enabled[0].Port = 1
	assert.Equal(t, DefaultPort, cfg.Profiles[0].Port)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9091", cfg.Metrics.Listen)
	assert.Equal(t, 32, cfg.Listener.BatchSize)

	profiles := cfg.EnabledProfiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "default", profiles[0].Name)
	assert.Equal(t, "0.0.0.0:37008", profiles[0].Addr())
	assert.Equal(t, []ActionSpec{{Action: "log"}}, cfg.CapturePlans["default"])
}
