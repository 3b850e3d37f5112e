// Package parsed implements the require_parsed filter action.
// Messages whose transport layer was not located are dropped from the plan.
package parsed

import (
	"context"
	"fmt"
	"strings"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/metrics"
	"firestige.xyz/tzspd/pkg/plugin"
)

// Config represents require_parsed options.
type Config struct {
	Protocols  []string `mapstructure:"protocols"`   // tcp or udp; empty allows any
	MinPayload int      `mapstructure:"min_payload"` // minimum transport payload bytes
}

// Filter drops unparsed messages and, optionally, messages of other
// transports or with short payloads.
type Filter struct {
	name      string
	protocols map[uint8]bool
	config    Config
}

// NewFilter creates a new require_parsed action.
func NewFilter() plugin.Action {
	return &Filter{name: "require_parsed"}
}

// Name returns the plugin name.
func (f *Filter) Name() string {
	return f.name
}

// Init initializes the filter with configuration.
func (f *Filter) Init(cfg map[string]any) error {
	if err := plugin.DecodeOptions(cfg, &f.config); err != nil {
		return err
	}
	if f.config.MinPayload < 0 {
		return fmt.Errorf("min_payload must not be negative, got %d", f.config.MinPayload)
	}
	if len(f.config.Protocols) == 0 {
		return nil
	}
	f.protocols = make(map[uint8]bool, len(f.config.Protocols))
	for _, name := range f.config.Protocols {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case metrics.ProtoLabel(core.ProtoTCP):
			f.protocols[core.ProtoTCP] = true
		case metrics.ProtoLabel(core.ProtoUDP):
			f.protocols[core.ProtoUDP] = true
		case metrics.ProtoLabel(core.ProtoSCTP):
			// the dissector never locates an SCTP header
			return fmt.Errorf("protocol %q is never parsed, must be tcp or udp", name)
		default:
			return fmt.Errorf("unknown protocol %q, must be tcp or udp", name)
		}
	}
	return nil
}

// Start starts the filter.
func (f *Filter) Start(ctx context.Context) error {
	return nil
}

// Stop stops the filter.
func (f *Filter) Stop(ctx context.Context) error {
	return nil
}

// Handle keeps parsed messages that match the configured protocols and
// payload size.
func (f *Filter) Handle(ctx context.Context, msg *core.Message) (plugin.Result, error) {
	if !msg.Parsed {
		return plugin.Drop, nil
	}
	if f.protocols != nil && !f.protocols[msg.IPProto] {
		return plugin.Drop, nil
	}
	if msg.PayloadLen() < f.config.MinPayload {
		return plugin.Drop, nil
	}
	return plugin.Continue, nil
}
