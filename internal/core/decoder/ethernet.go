// Package decoder implements protocol decoding.
package decoder

import (
	"fmt"

	"firestige.xyz/tzspd/internal/core/wire"
)

const (
	// Ethernet constants
	linkHeaderLen = 14
	vlanShimLen   = 4
	mplsShimLen   = 8 // VLAN tag + one MPLS label stack entry

	// EtherType values
	etherTypeVLAN        = 0x8100
	etherTypeMPLSUnicast = 0x8847
)

type link struct {
	srcMAC    string
	dstMAC    string
	etherType uint16
	shimLen   int
}

// decodeLink reads the MAC addresses and sizes the VLAN/MPLS shim.
//
// Only a single 802.1Q tag, optionally followed by a single MPLS label, is
// recognised: the EtherType at offset 12 selects VLAN and the two bytes at
// offset 16 select MPLS. Stacked tags are not unwrapped.
// The caller guarantees len(frame) >= linkHeaderLen.
func decodeLink(frame []byte) link {
	r := wire.NewReader(frame)
	dst, _ := r.Bytes(6)
	src, _ := r.Bytes(6)
	etherType, _ := r.Uint16()

	l := link{
		srcMAC:    formatMAC(src),
		dstMAC:    formatMAC(dst),
		etherType: etherType,
	}

	if etherType == etherTypeVLAN {
		l.shimLen = vlanShimLen
		if inner, ok := r.PeekUint16At(16); ok && inner == etherTypeMPLSUnicast {
			l.shimLen = mplsShimLen
		}
	}
	return l
}

// formatMAC renders a MAC address as upper-case dash separated octets.
func formatMAC(b []byte) string {
	return fmt.Sprintf("%02X-%02X-%02X-%02X-%02X-%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}
