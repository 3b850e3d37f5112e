// Package decoder implements protocol decoding.
package decoder

import (
	"net/netip"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/core/wire"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40
	ipv6FragHdrLen   = 8

	ipv4FlagMF      = 0x2000
	ipv4OffsetMask  = 0x1FFF
	ipv6FragOffMask = 0xFFF8 // offset already scaled to bytes

	nextHeaderFragment = 44
)

type network struct {
	family     uint8
	hdrLen     int
	proto      uint8
	fragmented bool
	fragOffset int
	// malformed marks a header whose own length field is impossible.
	malformed bool
	src       netip.Addr
	dst       netip.Addr
}

// decodeNetwork branches on the IP version nibble. ok is false when the
// version is unknown or the fixed header is not fully captured.
func decodeNetwork(data []byte) (network, bool) {
	if len(data) < 1 {
		return network{}, false
	}
	switch data[0] >> 4 {
	case 4:
		return decodeIPv4(data)
	case 6:
		return decodeIPv6(data)
	default:
		return network{}, false
	}
}

// decodeIPv4 decodes the IPv4 header.
func decodeIPv4(data []byte) (network, bool) {
	r := wire.NewReader(data)
	if !r.Has(ipv4HeaderMinLen) {
		return network{}, false
	}

	verIHL, _ := r.Uint8()
	_ = r.Skip(5) // TOS, total length, identification
	flagsOffset, _ := r.Uint16()
	_ = r.Skip(1) // TTL
	proto, _ := r.Uint8()
	_ = r.Skip(2) // checksum
	src, _ := r.Bytes(4)
	dst, _ := r.Bytes(4)

	n := network{
		family: core.FamilyIPv4,
		hdrLen: int(verIHL&0x0F) * 4,
		proto:  proto,
		src:    netip.AddrFrom4([4]byte(src)),
		dst:    netip.AddrFrom4([4]byte(dst)),
	}

	if n.hdrLen < ipv4HeaderMinLen {
		n.malformed = true
	}

	n.fragmented = flagsOffset&(ipv4FlagMF|ipv4OffsetMask) != 0
	if n.fragmented {
		n.fragOffset = int(flagsOffset&ipv4OffsetMask) * 8
	}
	return n, true
}

// decodeIPv6 decodes the fixed IPv6 header and, when it is the next header,
// the fragment extension header. Other extension headers are not walked.
func decodeIPv6(data []byte) (network, bool) {
	r := wire.NewReader(data)
	if !r.Has(ipv6HeaderLen) {
		return network{}, false
	}

	_ = r.Skip(6) // version/class/flow, payload length
	next, _ := r.Uint8()
	_ = r.Skip(1) // hop limit
	src, _ := r.Bytes(16)
	dst, _ := r.Bytes(16)

	n := network{
		family: core.FamilyIPv6,
		hdrLen: ipv6HeaderLen,
		proto:  next,
		src:    netip.AddrFrom16([16]byte(src)),
		dst:    netip.AddrFrom16([16]byte(dst)),
	}

	if next == nextHeaderFragment && r.Has(ipv6FragHdrLen) {
		fragNext, _ := r.Uint8()
		_ = r.Skip(1) // reserved
		offlg, _ := r.Uint16()
		n.hdrLen += ipv6FragHdrLen
		n.proto = fragNext
		n.fragmented = true
		n.fragOffset = int(offlg & ipv6FragOffMask)
	}
	return n, true
}
