package config

import (
	"fmt"
	"net"
	"strconv"

	"firestige.xyz/tzspd/internal/core"
)

// Defaults applied to profiles that leave fields empty.
const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 37008
	DefaultProtocolType = 1 // SIP
)

// Profile is one TZSP listener: where to bind, how to tag messages and
// which capture plan receives them.
type Profile struct {
	Name         string `mapstructure:"name" yaml:"name"`
	Description  string `mapstructure:"description" yaml:"description,omitempty"`
	Enable       bool   `mapstructure:"enable" yaml:"enable"`
	Serial       int    `mapstructure:"serial" yaml:"serial,omitempty"`
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	ProtocolType uint8  `mapstructure:"protocol_type" yaml:"protocol_type"`
	CapturePlan  string `mapstructure:"capture_plan" yaml:"capture_plan"`
}

// Addr returns host:port for binding.
func (p *Profile) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p *Profile) applyDefaults() {
	if p.Host == "" {
		p.Host = DefaultHost
	}
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if p.ProtocolType == 0 {
		p.ProtocolType = DefaultProtocolType
	}
}

func (p *Profile) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: profile name is required", core.ErrConfigInvalid)
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("%w: profile %q port %d out of range", core.ErrConfigInvalid, p.Name, p.Port)
	}
	if net.ParseIP(p.Host) == nil {
		return fmt.Errorf("%w: profile %q host %q is not an IP address", core.ErrConfigInvalid, p.Name, p.Host)
	}
	return nil
}

// EnabledProfiles returns the enabled profiles in configuration order.
// The slice index is the listener ID stamped on every message.
func (cfg *GlobalConfig) EnabledProfiles() []*Profile {
	out := make([]*Profile, 0, len(cfg.Profiles))
	for i := range cfg.Profiles {
		if cfg.Profiles[i].Enable {
			p := cfg.Profiles[i]
			out = append(out, &p)
		}
	}
	return out
}
