// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/tzspd/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `tzspd:` root key in YAML.
type GlobalConfig struct {
	Log          LogConfig               `mapstructure:"log" yaml:"log"`
	Metrics      MetricsConfig           `mapstructure:"metrics" yaml:"metrics"`
	Listener     ListenerConfig          `mapstructure:"listener" yaml:"listener"`
	Profiles     []Profile               `mapstructure:"profiles" yaml:"profiles"`
	CapturePlans map[string][]ActionSpec `mapstructure:"capture_plans" yaml:"capture_plans"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" yaml:"level"`     // trace / debug / info / warn / error
	Pattern string           `mapstructure:"pattern" yaml:"pattern"` // %time %level %field %msg %caller %func
	Time    string           `mapstructure:"time" yaml:"time"`       // Go time layout
	Outputs LogOutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stdout.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Listener ───

// ListenerConfig tunes the UDP receive side shared by all profiles.
type ListenerConfig struct {
	Workers     int `mapstructure:"workers" yaml:"workers"`           // 0 = GOMAXPROCS
	BatchSize   int `mapstructure:"batch_size" yaml:"batch_size"`     // datagrams per recvmmsg
	ReadBuffer  int `mapstructure:"read_buffer" yaml:"read_buffer"`   // SO_RCVBUF bytes, 0 = kernel default
	MaxDatagram int `mapstructure:"max_datagram" yaml:"max_datagram"` // receive buffer per datagram
	QueueSize   int `mapstructure:"queue_size" yaml:"queue_size"`     // datagrams waiting for a worker
}

// ─── Capture plans ───

// ActionSpec is one step of a capture plan.
type ActionSpec struct {
	Action  string         `mapstructure:"action" yaml:"action"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `tzspd: ...`.
type configRoot struct {
	Tzspd GlobalConfig `mapstructure:"tzspd"`
}

// Load loads configuration from file.
// Environment variables override file values with the TZSPD_ prefix
// (e.g. TZSPD_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Tzspd

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given: one
// profile on the standard TZSP port feeding the "default" plan, which
// only logs what it sees.
func Default() *GlobalConfig {
	v := viper.New()
	setDefaults(v)

	var root configRoot
	_ = v.Unmarshal(&root)
	cfg := root.Tzspd
	cfg.Profiles = []Profile{{Name: "default", Enable: true, CapturePlan: "default"}}
	cfg.CapturePlans = map[string][]ActionSpec{"default": {{Action: "log"}}}
	_ = cfg.ValidateAndApplyDefaults()
	return &cfg
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("tzspd.log.level", "info")
	v.SetDefault("tzspd.log.pattern", "%time [%level] %caller: %msg %field\n")
	v.SetDefault("tzspd.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("tzspd.log.outputs.file.enabled", false)
	v.SetDefault("tzspd.log.outputs.file.path", "/var/log/tzspd/tzspd.log")
	v.SetDefault("tzspd.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("tzspd.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("tzspd.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("tzspd.log.outputs.file.rotation.compress", true)

	v.SetDefault("tzspd.metrics.enabled", true)
	v.SetDefault("tzspd.metrics.listen", ":9091")
	v.SetDefault("tzspd.metrics.path", "/metrics")

	v.SetDefault("tzspd.listener.workers", 0)
	v.SetDefault("tzspd.listener.batch_size", 32)
	v.SetDefault("tzspd.listener.read_buffer", 4<<20)
	v.SetDefault("tzspd.listener.max_datagram", 65535)
	v.SetDefault("tzspd.listener.queue_size", 4096)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("%w: log level %q (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	if cfg.Listener.BatchSize <= 0 {
		cfg.Listener.BatchSize = 1
	}
	if cfg.Listener.MaxDatagram <= 0 || cfg.Listener.MaxDatagram > 65535 {
		cfg.Listener.MaxDatagram = 65535
	}
	if cfg.Listener.QueueSize < 0 {
		cfg.Listener.QueueSize = 0
	}

	seen := make(map[string]bool, len(cfg.Profiles))
	for i := range cfg.Profiles {
		p := &cfg.Profiles[i]
		p.applyDefaults()
		if err := p.validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate profile name %q", core.ErrConfigInvalid, p.Name)
		}
		seen[p.Name] = true
		if p.Enable && p.CapturePlan != "" {
			if _, ok := cfg.CapturePlans[p.CapturePlan]; !ok {
				return fmt.Errorf("%w: profile %q references unknown capture plan %q", core.ErrConfigInvalid, p.Name, p.CapturePlan)
			}
		}
	}

	for name, actions := range cfg.CapturePlans {
		for i, a := range actions {
			if a.Action == "" {
				return fmt.Errorf("%w: capture plan %q step %d has no action", core.ErrConfigInvalid, name, i)
			}
		}
	}
	return nil
}
