// Package console implements the log action.
// Writes one human-readable or JSON line per message to the process logger.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/log"
	"firestige.xyz/tzspd/pkg/plugin"
)

const defaultMaxPayload = 256

// ConsoleReporter logs messages for debugging.
type ConsoleReporter struct {
	name          string
	config        Config
	reportedCount atomic.Uint64
}

// Config represents log action configuration.
type Config struct {
	Format     string `mapstructure:"format"`      // "json" or "text", default "text"
	Level      string `mapstructure:"level"`       // "info", "debug" or "trace", default "info"
	Payload    bool   `mapstructure:"payload"`     // include the transport payload
	MaxPayload int    `mapstructure:"max_payload"` // payload bytes shown, default 256
}

// NewConsoleReporter creates a new log action.
func NewConsoleReporter() plugin.Action {
	return &ConsoleReporter{
		name: "log",
		config: Config{
			Format:     "text",
			Level:      "info",
			MaxPayload: defaultMaxPayload,
		},
	}
}

// Name returns the plugin name.
func (r *ConsoleReporter) Name() string {
	return r.name
}

// Init initializes the reporter with configuration.
func (r *ConsoleReporter) Init(cfg map[string]any) error {
	if err := plugin.DecodeOptions(cfg, &r.config); err != nil {
		return err
	}
	if r.config.Format != "json" && r.config.Format != "text" {
		return fmt.Errorf("invalid format %q, must be json or text", r.config.Format)
	}
	switch r.config.Level {
	case "info", "debug", "trace":
	default:
		return fmt.Errorf("invalid level %q, must be info, debug or trace", r.config.Level)
	}
	if r.config.MaxPayload <= 0 {
		r.config.MaxPayload = defaultMaxPayload
	}
	return nil
}

// Start starts the reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	log.GetLogger().WithField("format", r.config.Format).WithField("level", r.config.Level).Debug("log action started")
	return nil
}

// Stop stops the reporter.
func (r *ConsoleReporter) Stop(ctx context.Context) error {
	log.GetLogger().WithField("total_reported", r.reportedCount.Load()).Debug("log action stopped")
	return nil
}

// Handle logs one message and passes it on.
func (r *ConsoleReporter) Handle(ctx context.Context, msg *core.Message) (plugin.Result, error) {
	if msg == nil {
		return plugin.Continue, fmt.Errorf("nil message")
	}

	logger := log.GetLogger()
	switch r.config.Level {
	case "debug":
		if !logger.IsDebugEnabled() {
			return plugin.Continue, nil
		}
	case "trace":
		if !logger.IsTraceEnabled() {
			return plugin.Continue, nil
		}
	}

	var line string
	if r.config.Format == "json" {
		data, err := r.formatJSON(msg)
		if err != nil {
			return plugin.Continue, err
		}
		line = string(data)
	} else {
		line = r.formatText(msg)
	}

	switch r.config.Level {
	case "debug":
		logger.Debug(line)
	case "trace":
		logger.Trace(line)
	default:
		logger.Info(line)
	}
	r.reportedCount.Add(1)
	return plugin.Continue, nil
}

// formatJSON renders msg as a JSON object.
func (r *ConsoleReporter) formatJSON(msg *core.Message) ([]byte, error) {
	output := map[string]any{
		"profile":     msg.ProfileName,
		"listener_id": msg.ListenerID,
		"timestamp":   msg.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		"src_mac":     msg.SrcMAC,
		"dst_mac":     msg.DstMAC,
		"src_ip":      msg.SrcIP,
		"dst_ip":      msg.DstIP,
		"src_port":    msg.SrcPort,
		"dst_port":    msg.DstPort,
		"protocol":    msg.IPProto,
		"parsed":      msg.Parsed,
		"payload_len": msg.PayloadLen(),
	}
	if msg.IPProto == core.ProtoTCP {
		output["tcp_flags"] = msg.TCPFlags
	}
	if msg.Fragmented {
		output["frag_offset"] = msg.FragOffset
	}
	if len(msg.Labels) > 0 {
		output["labels"] = msg.Labels
	}
	if r.config.Payload {
		output["payload"] = string(r.truncate(msg.Payload()))
	}

	data, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("json marshal failed: %w", err)
	}
	return data, nil
}

// formatText renders msg as one human-readable line.
func (r *ConsoleReporter) formatText(msg *core.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s:%d -> %s:%d proto=%d",
		msg.ProfileName,
		msg.Timestamp.Format("15:04:05.000"),
		msg.SrcIP, msg.SrcPort,
		msg.DstIP, msg.DstPort,
		msg.IPProto,
	)
	if !msg.Parsed {
		b.WriteString(" unparsed")
	}
	if msg.Fragmented {
		fmt.Fprintf(&b, " frag_offset=%d", msg.FragOffset)
	}
	if len(msg.Labels) > 0 {
		fmt.Fprintf(&b, " labels=%v", msg.Labels)
	}
	fmt.Fprintf(&b, " payload_len=%d", msg.PayloadLen())
	if r.config.Payload {
		fmt.Fprintf(&b, " payload=%q", r.truncate(msg.Payload()))
	}
	return b.String()
}

func (r *ConsoleReporter) truncate(p []byte) []byte {
	if len(p) > r.config.MaxPayload {
		return p[:r.config.MaxPayload]
	}
	return p
}
