// Package core defines core data structures with zero external dependencies.
package core

import (
	"net"
	"net/netip"
	"time"
)

// IP family values, matching AF_INET/AF_INET6 on Linux and the HEP family chunk.
const (
	FamilyIPv4 = uint8(2)
	FamilyIPv6 = uint8(10)
)

// IP protocol numbers the collector cares about.
const (
	ProtoTCP  = uint8(6)
	ProtoUDP  = uint8(17)
	ProtoSCTP = uint8(132)
)

// Message is the dissected view of one TZSP-encapsulated frame.
//
// Data aliases the datagram buffer the frame was read from; a Message must
// not be used after that buffer is released or reused.
type Message struct {
	// Data starts at the network-layer header and spans Len bytes.
	Data []byte
	Len  int
	// HdrLen is link + shim + IP + transport header length, counted from the
	// start of the Ethernet frame.
	HdrLen int
	// LinkLen is the Ethernet header plus VLAN/MPLS shim length.
	LinkLen int

	IPFamily uint8
	IPProto  uint8
	SrcAddr  netip.Addr
	DstAddr  netip.Addr
	SrcIP    string
	DstIP    string
	SrcMAC   string
	DstMAC   string
	SrcPort  uint16
	DstPort  uint16
	TCPFlags uint8

	Fragmented bool
	FragOffset int // fragment offset in bytes, 0 when not fragmented
	Parsed     bool

	Timestamp time.Time

	// Pass-through values stamped by the listener.
	ListenerID  int
	ProfileName string
	ProtoType   uint8
	Sender      *net.UDPAddr

	Labels Labels
}

// Payload returns the captured bytes following every located header. For a
// parsed record that is the transport payload; for a non-initial fragment it
// is the IP payload. It is nil when the headers run past the capture.
func (m *Message) Payload() []byte {
	off := m.HdrLen - m.LinkLen
	if off < 0 || off > len(m.Data) {
		return nil
	}
	return m.Data[off:]
}

// PayloadLen is the captured length remaining after all headers, clamped to 0.
func (m *Message) PayloadLen() int {
	n := m.Len - (m.HdrLen - m.LinkLen)
	if n < 0 {
		return 0
	}
	return n
}

// Verdict classifies what happened to a datagram.
type Verdict uint8

const (
	VerdictMalformed Verdict = iota
	VerdictUnparsed
	VerdictParsed
)

func (v Verdict) String() string {
	switch v {
	case VerdictMalformed:
		return "malformed"
	case VerdictUnparsed:
		return "unparsed"
	case VerdictParsed:
		return "parsed"
	default:
		return "unknown"
	}
}

// VerdictOf reports the verdict for a dissection result.
func VerdictOf(m *Message, err error) Verdict {
	if err != nil || m == nil {
		return VerdictMalformed
	}
	if !m.Parsed {
		return VerdictUnparsed
	}
	return VerdictParsed
}
