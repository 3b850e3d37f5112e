// Package tzsp decapsulates TaZmen Sniffer Protocol datagrams.
//
// A TZSP datagram is a 4-byte header followed by a tag list terminated by an
// END tag, followed by the encapsulated frame:
//
//	0  1  version (1)
//	1  1  type (0 = received tag list)
//	2  2  encapsulated protocol (big-endian, 1 = Ethernet)
//	4  …  tags: PADDING(0) and END(1) are one byte, every other tag is
//	      type(1) + length(1) + length bytes
//	…  …  encapsulated frame
package tzsp

import (
	"fmt"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/core/wire"
)

// HeaderLen is the size of the fixed TZSP header.
const HeaderLen = 4

// Version is the only TZSP version understood by this decoder.
const Version = 1

// TZSP packet types.
const (
	TypeReceivedTagList   = 0
	TypePacketForTransmit = 1
	TypeReserved          = 2
	TypeConfiguration     = 3
	TypeKeepalive         = 4
	TypePortOpener        = 5
)

// Encapsulated protocol values.
const (
	EncapEthernet  = 1
	EncapIEEE80211 = 18
	EncapPrism     = 119
	EncapWLANAVS   = 127
)

// Header is the fixed TZSP prefix.
type Header struct {
	Version uint8
	Type    uint8
	Encap   uint16
}

// Tag is one element of the tag list. Data aliases the datagram.
type Tag struct {
	Type   uint8
	Offset int
	Data   []byte
}

// Name returns the tag's symbolic name.
func (t Tag) Name() string { return TagName(t.Type) }

// Parse validates the header, walks the tag list and returns the offset of
// the encapsulated frame.
func Parse(buf []byte) (int, error) {
	_, off, err := Decode(buf, nil)
	return off, err
}

// Decode is Parse with access to the header and, when visit is non-nil, to
// every tag in wire order.
func Decode(buf []byte, visit func(Tag)) (Header, int, error) {
	r := wire.NewReader(buf)

	var hdr Header
	if !r.Has(HeaderLen) {
		return hdr, 0, fmt.Errorf("%w: %d bytes", core.ErrTruncatedHeader, len(buf))
	}
	hdr.Version, _ = r.Uint8()
	hdr.Type, _ = r.Uint8()
	hdr.Encap, _ = r.Uint16()

	if hdr.Version != Version || hdr.Type != TypeReceivedTagList {
		return hdr, 0, fmt.Errorf("%w: version %d type %d", core.ErrUnsupportedFormat, hdr.Version, hdr.Type)
	}

	for {
		start := r.Offset()
		tagType, ok := r.Uint8()
		if !ok {
			return hdr, 0, fmt.Errorf("%w: tag list ends at offset %d", core.ErrMissingEndTag, start)
		}

		switch tagType {
		case TagEnd:
			if visit != nil {
				visit(Tag{Type: tagType, Offset: start})
			}
			return hdr, r.Offset(), nil
		case TagPadding:
			if visit != nil {
				visit(Tag{Type: tagType, Offset: start})
			}
		default:
			length, ok := r.Uint8()
			if !ok {
				return hdr, 0, fmt.Errorf("%w: tag %d at offset %d has no length", core.ErrTruncatedTag, tagType, start)
			}
			data, ok := r.Bytes(int(length))
			if !ok {
				return hdr, 0, fmt.Errorf("%w: tag %d at offset %d declares %d bytes, %d left",
					core.ErrTruncatedTag, tagType, start, length, r.Remaining())
			}
			if visit != nil {
				visit(Tag{Type: tagType, Offset: start, Data: data})
			}
		}
	}
}
