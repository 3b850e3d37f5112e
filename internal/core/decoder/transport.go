// Package decoder implements protocol decoding.
package decoder

import (
	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/core/wire"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

type transport struct {
	hdrLen   int
	srcPort  uint16
	dstPort  uint16
	tcpFlags uint8
	located  bool
}

// decodeTransport reads the TCP or UDP header at the start of data.
// A non-initial fragment carries no transport header: its header length is
// 0 and located is false. Unknown protocols are never located.
func decodeTransport(data []byte, proto uint8, fragOffset int) transport {
	if fragOffset != 0 {
		return transport{}
	}
	switch proto {
	case core.ProtoTCP:
		return decodeTCP(data)
	case core.ProtoUDP:
		return decodeUDP(data)
	default:
		return transport{}
	}
}

// decodeUDP decodes UDP header.
func decodeUDP(data []byte) transport {
	r := wire.NewReader(data)
	if !r.Has(udpHeaderLen) {
		return transport{}
	}
	src, _ := r.Uint16()
	dst, _ := r.Uint16()
	return transport{
		hdrLen:  udpHeaderLen,
		srcPort: src,
		dstPort: dst,
		located: true,
	}
}

// decodeTCP decodes TCP header. The header length comes from the data
// offset field and may exceed the captured bytes; callers clamp the payload.
func decodeTCP(data []byte) transport {
	r := wire.NewReader(data)
	if !r.Has(tcpHeaderMinLen) {
		return transport{}
	}
	src, _ := r.Uint16()
	dst, _ := r.Uint16()
	_ = r.Skip(8) // sequence, acknowledgment
	dataOffset, _ := r.Uint8()
	flags, _ := r.Uint8()

	hdrLen := int(dataOffset>>4) * 4
	if hdrLen < tcpHeaderMinLen {
		return transport{}
	}
	return transport{
		hdrLen:   hdrLen,
		srcPort:  src,
		dstPort:  dst,
		tcpFlags: flags,
		located:  true,
	}
}
