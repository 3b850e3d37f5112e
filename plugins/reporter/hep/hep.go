package hep

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"net"
	"sync/atomic"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/log"
	"firestige.xyz/tzspd/pkg/plugin"
)

// HEPReporter sends messages as HEPv3 frames via UDP.
//
// Routing is flow-stable: the target server is selected by hashing the
// 5-tuple modulo len(servers), so every packet of a flow reaches the same
// collector.
//
// Example capture plan entry:
//
//	- action: hep
//	  options:
//	    servers: ["10.0.0.1:9060", "10.0.0.2:9060"]
//	    capture_id: 2001
//	    auth_key: "mysecret"
type HEPReporter struct {
	name   string
	config Config

	// One pre-dialed UDP connection per configured server, opened in Start.
	conns []*net.UDPConn

	sentCount  atomic.Uint64
	errorCount atomic.Uint64
}

// Config holds hep action options.
type Config struct {
	Servers   []string `mapstructure:"servers"`    // host:port list, at least one
	CaptureID uint32   `mapstructure:"capture_id"` // chunk 12
	AuthKey   string   `mapstructure:"auth_key"`   // chunk 14
	NodeName  string   `mapstructure:"node_name"`  // chunk 19
}

// NewHEPReporter creates a new hep action.
func NewHEPReporter() plugin.Action {
	return &HEPReporter{name: "hep"}
}

// Name returns the plugin identifier.
func (r *HEPReporter) Name() string { return r.name }

// Init validates and applies configuration.
func (r *HEPReporter) Init(cfg map[string]any) error {
	var c Config
	if err := plugin.DecodeOptions(cfg, &c); err != nil {
		return fmt.Errorf("hep reporter: %w", err)
	}
	if len(c.Servers) == 0 {
		return fmt.Errorf("hep reporter: at least one server is required")
	}
	r.config = c
	return nil
}

// Start opens UDP connections to all configured servers.
func (r *HEPReporter) Start(ctx context.Context) error {
	var d net.Dialer
	r.conns = make([]*net.UDPConn, 0, len(r.config.Servers))
	for _, srv := range r.config.Servers {
		conn, err := d.DialContext(ctx, "udp", srv)
		if err != nil {
			r.closeConns()
			return fmt.Errorf("hep reporter: dial %q: %w", srv, err)
		}
		r.conns = append(r.conns, conn.(*net.UDPConn))
	}
	log.GetLogger().WithField("servers", r.config.Servers).
		WithField("capture_id", r.config.CaptureID).
		Info("hep reporter started")
	return nil
}

// Stop closes all UDP connections and logs final statistics.
func (r *HEPReporter) Stop(_ context.Context) error {
	r.closeConns()
	log.GetLogger().WithField("sent", r.sentCount.Load()).
		WithField("errors", r.errorCount.Load()).
		Info("hep reporter stopped")
	return nil
}

func (r *HEPReporter) closeConns() {
	for _, c := range r.conns {
		if c != nil {
			_ = c.Close()
		}
	}
	r.conns = nil
}

// Handle encodes msg as a HEPv3 frame and sends it to the server owning its
// flow. Messages without located transport headers are passed on unsent.
func (r *HEPReporter) Handle(_ context.Context, msg *core.Message) (plugin.Result, error) {
	if !msg.Parsed {
		return plugin.Continue, nil
	}
	if len(r.conns) == 0 {
		return plugin.Continue, fmt.Errorf("hep reporter: not started")
	}

	frame, err := Encode(msg, EncodeOptions{
		CaptureID: r.config.CaptureID,
		AuthKey:   r.config.AuthKey,
		NodeName:  r.config.NodeName,
	})
	if err != nil {
		r.errorCount.Add(1)
		return plugin.Continue, fmt.Errorf("hep reporter: encode: %w", err)
	}

	conn := r.selectConn(msg)
	if _, err = conn.Write(frame); err != nil {
		r.errorCount.Add(1)
		return plugin.Continue, fmt.Errorf("hep reporter: send to %s: %w", conn.RemoteAddr(), err)
	}

	r.sentCount.Add(1)
	return plugin.Delivered, nil
}

// selectConn returns the UDP connection for the server that owns msg's flow:
//
//	idx = FNV-32a(srcIP‖srcPort‖dstIP‖dstPort‖protocol) % len(conns)
func (r *HEPReporter) selectConn(msg *core.Message) *net.UDPConn {
	if len(r.conns) == 1 {
		return r.conns[0]
	}

	h := fnv.New32a()

	src16 := msg.SrcAddr.As16()
	dst16 := msg.DstAddr.As16()
	_, _ = h.Write(src16[:])

	var port [2]byte
	binary.BigEndian.PutUint16(port[:], msg.SrcPort)
	_, _ = h.Write(port[:])

	_, _ = h.Write(dst16[:])
	binary.BigEndian.PutUint16(port[:], msg.DstPort)
	_, _ = h.Write(port[:])

	_, _ = h.Write([]byte{msg.IPProto})

	idx := h.Sum32() % uint32(len(r.conns))
	return r.conns[idx]
}
