package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"

	"firestige.xyz/tzspd/internal/core"
)

// Stats keeps process-wide totals alongside the Prometheus vectors so they
// can be rendered without scraping.
type Stats struct {
	Received atomic.Uint64
	TCP      atomic.Uint64
	UDP      atomic.Uint64
	SCTP     atomic.Uint64
	Sent     atomic.Uint64
}

// Global is the process-wide statistics instance.
var Global = &Stats{}

// ProtoLabel maps an IP protocol number to the "proto" label value.
func ProtoLabel(proto uint8) string {
	switch proto {
	case core.ProtoTCP:
		return "tcp"
	case core.ProtoUDP:
		return "udp"
	case core.ProtoSCTP:
		return "sctp"
	default:
		return "other"
	}
}

// ObserveReceived counts one dissected message for profile.
func (s *Stats) ObserveReceived(profile string, proto uint8) {
	s.Received.Add(1)
	switch proto {
	case core.ProtoTCP:
		s.TCP.Add(1)
	case core.ProtoUDP:
		s.UDP.Add(1)
	case core.ProtoSCTP:
		s.SCTP.Add(1)
	}
	ReceivedTotal.WithLabelValues(profile, ProtoLabel(proto)).Inc()
}

// ObserveSent counts one message delivered by reporter for profile.
func (s *Stats) ObserveSent(profile, reporter string) {
	s.Sent.Add(1)
	SentTotal.WithLabelValues(profile, reporter).Inc()
}

// Reset resets all counters to zero. Prometheus vectors are not touched.
func (s *Stats) Reset() {
	s.Received.Store(0)
	s.TCP.Store(0)
	s.UDP.Store(0)
	s.SCTP.Store(0)
	s.Sent.Store(0)
}

// String renders the counters one per line, CRLF terminated.
func (s *Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total received: [%d]\r\n", s.Received.Load())
	fmt.Fprintf(&b, "TCP received: [%d]\r\n", s.TCP.Load())
	fmt.Fprintf(&b, "UDP received: [%d]\r\n", s.UDP.Load())
	fmt.Fprintf(&b, "SCTP received: [%d]\r\n", s.SCTP.Load())
	fmt.Fprintf(&b, "Total sent: [%d]\r\n", s.Sent.Load())
	return b.String()
}
