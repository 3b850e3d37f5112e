// Package listener receives TZSP datagrams on the profile UDP sockets and
// hands them to the profile pipeline through a bounded worker pool.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"firestige.xyz/tzspd/internal/config"
	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/log"
	"firestige.xyz/tzspd/internal/pipeline"
)

// batchReader is implemented by ipv4.PacketConn and ipv6.PacketConn.
type batchReader interface {
	ReadBatch(ms []ipv4.Message, flags int) (int, error)
}

// Listener owns one UDP socket bound to a profile address.
type Listener struct {
	pipeline *pipeline.Pipeline
	cfg      config.ListenerConfig

	conn   *net.UDPConn
	reader batchReader
}

// New creates a listener for the profile served by p.
func New(p *pipeline.Pipeline, cfg config.ListenerConfig) *Listener {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.MaxDatagram <= 0 || cfg.MaxDatagram > 65535 {
		cfg.MaxDatagram = 65535
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &Listener{pipeline: p, cfg: cfg}
}

// Listen binds the profile address. A bind failure is returned as is.
func (l *Listener) Listen(ctx context.Context) error {
	profile := l.pipeline.Profile()

	network := "udp"
	if ip := net.ParseIP(profile.Host); ip != nil {
		if ip.To4() != nil {
			network = "udp4"
		} else {
			network = "udp6"
		}
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, network, profile.Addr())
	if err != nil {
		return fmt.Errorf("profile %q listen %s: %w", profile.Name, profile.Addr(), err)
	}
	conn := pc.(*net.UDPConn)

	if l.cfg.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(l.cfg.ReadBuffer); err != nil {
			log.GetLogger().WithError(err).WithField("profile", profile.Name).
				Warn("failed to set socket read buffer")
		}
	}

	l.conn = conn
	if network == "udp6" {
		l.reader = ipv6.NewPacketConn(conn)
	} else {
		l.reader = ipv4.NewPacketConn(conn)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"profile":    profile.Name,
		"addr":       conn.LocalAddr().String(),
		"workers":    l.cfg.Workers,
		"batch_size": l.cfg.BatchSize,
	}).Info("listener bound")
	return nil
}

// Addr returns the bound address, nil before Listen.
func (l *Listener) Addr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run receives datagrams until ctx is done, then drains the queue and
// waits for the workers. Datagrams arriving while the queue is full are
// counted as dropped.
func (l *Listener) Run(ctx context.Context) error {
	if l.conn == nil {
		return fmt.Errorf("listener for profile %q: not bound", l.pipeline.Profile().Name)
	}

	jobs := make(chan core.Datagram, l.cfg.QueueSize)
	// queued datagrams are still handled after ctx is done
	handleCtx := context.WithoutCancel(ctx)

	workers := pool.New().WithMaxGoroutines(l.cfg.Workers)
	for i := 0; i < l.cfg.Workers; i++ {
		workers.Go(func() {
			for d := range jobs {
				l.pipeline.Handle(handleCtx, d)
			}
		})
	}

	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.Close()
	})
	defer stop()

	err := l.receive(ctx, jobs)
	close(jobs)
	workers.Wait()
	return err
}

func (l *Listener) receive(ctx context.Context, jobs chan<- core.Datagram) error {
	msgs := make([]ipv4.Message, l.cfg.BatchSize)
	for i := range msgs {
		msgs[i].Buffers = [][]byte{make([]byte, l.cfg.MaxDatagram)}
	}

	for {
		n, err := l.reader.ReadBatch(msgs, 0)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.GetLogger().WithError(err).
				WithField("profile", l.pipeline.Profile().Name).
				Error("listener read failed")
			return fmt.Errorf("profile %q read: %w", l.pipeline.Profile().Name, err)
		}

		now := time.Now()
		for i := 0; i < n; i++ {
			m := &msgs[i]
			// the batch buffers are reused by the next read
			data := make([]byte, m.N)
			copy(data, m.Buffers[0][:m.N])

			d := core.Datagram{Data: data, Timestamp: now}
			if addr, ok := m.Addr.(*net.UDPAddr); ok {
				d.Sender = addr
			}

			select {
			case jobs <- d:
			default:
				l.pipeline.Overflow()
			}
		}
	}
}

// Close releases the socket.
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Group runs the listeners of every enabled profile.
type Group struct {
	listeners []*Listener
}

// NewGroup creates one listener per pipeline.
func NewGroup(pipelines []*pipeline.Pipeline, cfg config.ListenerConfig) *Group {
	g := &Group{listeners: make([]*Listener, 0, len(pipelines))}
	for _, p := range pipelines {
		g.listeners = append(g.listeners, New(p, cfg))
	}
	return g
}

// Listen binds every listener. On failure the sockets already bound are
// closed and the combined error is returned.
func (g *Group) Listen(ctx context.Context) error {
	for i, l := range g.listeners {
		if err := l.Listen(ctx); err != nil {
			for _, bound := range g.listeners[:i] {
				err = multierr.Append(err, bound.Close())
			}
			return err
		}
	}
	return nil
}

// Run runs every listener until ctx is done. The first listener that fails
// stops the others and its error is returned.
func (g *Group) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()
	for _, l := range g.listeners {
		p.Go(func(ctx context.Context) error {
			return l.Run(ctx)
		})
	}
	return p.Wait()
}

// Close closes every socket.
func (g *Group) Close() error {
	var err error
	for _, l := range g.listeners {
		err = multierr.Append(err, l.Close())
	}
	return err
}

// Listeners returns the group members in profile order.
func (g *Group) Listeners() []*Listener {
	return g.listeners
}
