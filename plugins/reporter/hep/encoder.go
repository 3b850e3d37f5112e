// Package hep implements the hep action: HEPv3 encoding of dissected
// messages and delivery over UDP.
//
// HEP (Homer Encapsulation Protocol) v3 frame layout:
//
//	Offset  Size  Description
//	------  ----  -----------
//	0       4     Magic: "HEP3"
//	4       2     Total frame length (big-endian uint16, includes these 6 bytes)
//	6       …     Chunks (variable count)
//
// Each chunk:
//
//	0  2   Vendor ID  (uint16, 0x0000 = HOMER standard)
//	2  2   Chunk type (uint16)
//	4  2   Total chunk length including this 6-byte header (uint16)
//	6  …   Value (length−6 bytes)
//
// Chunk types written (vendor 0x0000):
//
//	1   IP family         uint8  (2=IPv4, 10=IPv6)
//	2   IP protocol ID    uint8  (6=TCP, 17=UDP, 132=SCTP)
//	3   Source  IPv4      4 bytes
//	4   Dest    IPv4      4 bytes
//	5   Source  IPv6      16 bytes
//	6   Dest    IPv6      16 bytes
//	7   Source port       uint16
//	8   Dest   port       uint16
//	9   Timestamp sec     uint32
//	10  Timestamp µsec    uint32
//	11  Protocol type     uint8  (profile protocol-type, 1=SIP)
//	12  Capture agent ID  uint32
//	14  Auth key          string (no NUL terminator)
//	15  Payload           bytes
//	17  Correlation ID    string (SIP Call-ID)
//	19  Node name         string
package hep

import (
	"encoding/binary"
	"fmt"
	"time"

	"firestige.xyz/tzspd/internal/core"
)

const (
	hepMagic = "HEP3"

	// chunkHeaderLen is the fixed overhead of every chunk (vendor + type + length).
	chunkHeaderLen = 6

	// vendorHOMER is the vendor ID used by the HOMER/Sipcapture project.
	vendorHOMER = uint16(0x0000)
)

// Standard chunk type IDs.
const (
	chunkIPFamily  = uint16(1)
	chunkIPProto   = uint16(2)
	chunkSrcIPv4   = uint16(3)
	chunkDstIPv4   = uint16(4)
	chunkSrcIPv6   = uint16(5)
	chunkDstIPv6   = uint16(6)
	chunkSrcPort   = uint16(7)
	chunkDstPort   = uint16(8)
	chunkTimeSec   = uint16(9)
	chunkTimeUsec  = uint16(10)
	chunkProtoType = uint16(11)
	chunkCaptureID = uint16(12)
	chunkAuthKey   = uint16(14)
	chunkPayload   = uint16(15)
	chunkCorrID    = uint16(17)
	chunkNodeName  = uint16(19)
)

// EncodeOptions carries per-frame values from the action options.
type EncodeOptions struct {
	CaptureID uint32 // chunk 12
	AuthKey   string // chunk 14, omitted if empty
	NodeName  string // chunk 19, omitted if empty
}

// Encode serialises msg into a HEPv3 byte frame.
// The caller owns the returned slice.
func Encode(msg *core.Message, opts EncodeOptions) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("hep: nil message")
	}
	if !msg.SrcAddr.IsValid() || !msg.DstAddr.IsValid() {
		return nil, fmt.Errorf("hep: message has no IP addresses")
	}

	payload := msg.Payload()
	buf := make([]byte, 0, 256+len(payload))

	// Frame header, length back-filled at the end.
	buf = append(buf, hepMagic...)
	buf = append(buf, 0, 0)

	family := msg.IPFamily
	if family == 0 {
		family = core.FamilyIPv4
		if msg.SrcAddr.Is6() && !msg.SrcAddr.Is4In6() {
			family = core.FamilyIPv6
		}
	}
	buf = appendUint8(buf, chunkIPFamily, family)
	buf = appendUint8(buf, chunkIPProto, msg.IPProto)

	if family == core.FamilyIPv4 {
		src4 := msg.SrcAddr.Unmap().As4()
		dst4 := msg.DstAddr.Unmap().As4()
		buf = appendBytes(buf, chunkSrcIPv4, src4[:])
		buf = appendBytes(buf, chunkDstIPv4, dst4[:])
	} else {
		src6 := msg.SrcAddr.As16()
		dst6 := msg.DstAddr.As16()
		buf = appendBytes(buf, chunkSrcIPv6, src6[:])
		buf = appendBytes(buf, chunkDstIPv6, dst6[:])
	}

	buf = appendUint16(buf, chunkSrcPort, msg.SrcPort)
	buf = appendUint16(buf, chunkDstPort, msg.DstPort)

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	buf = appendUint32(buf, chunkTimeSec, uint32(ts.Unix()))
	buf = appendUint32(buf, chunkTimeUsec, uint32(ts.Nanosecond()/1_000))

	buf = appendUint8(buf, chunkProtoType, msg.ProtoType)
	buf = appendUint32(buf, chunkCaptureID, opts.CaptureID)

	if opts.AuthKey != "" {
		buf = appendBytes(buf, chunkAuthKey, []byte(opts.AuthKey))
	}
	if len(payload) > 0 {
		buf = appendBytes(buf, chunkPayload, payload)
	}
	if cid := msg.Labels[core.LabelSIPCallID]; cid != "" {
		buf = appendBytes(buf, chunkCorrID, []byte(cid))
	}
	if opts.NodeName != "" {
		buf = appendBytes(buf, chunkNodeName, []byte(opts.NodeName))
	}

	if len(buf) > 0xFFFF {
		return nil, fmt.Errorf("hep: frame too large (%d bytes, max 65535)", len(buf))
	}
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(buf)))

	return buf, nil
}

// appendChunkHeader writes the 6-byte chunk header (vendor, type, totalLen).
func appendChunkHeader(buf []byte, chunkType uint16, valueLen int) []byte {
	var h [chunkHeaderLen]byte
	binary.BigEndian.PutUint16(h[0:2], vendorHOMER)
	binary.BigEndian.PutUint16(h[2:4], chunkType)
	binary.BigEndian.PutUint16(h[4:6], uint16(chunkHeaderLen+valueLen))
	return append(buf, h[:]...)
}

func appendBytes(buf []byte, chunkType uint16, value []byte) []byte {
	buf = appendChunkHeader(buf, chunkType, len(value))
	return append(buf, value...)
}

func appendUint8(buf []byte, chunkType uint16, value uint8) []byte {
	buf = appendChunkHeader(buf, chunkType, 1)
	return append(buf, value)
}

func appendUint16(buf []byte, chunkType uint16, value uint16) []byte {
	buf = appendChunkHeader(buf, chunkType, 2)
	return binary.BigEndian.AppendUint16(buf, value)
}

func appendUint32(buf []byte, chunkType uint16, value uint32) []byte {
	buf = appendChunkHeader(buf, chunkType, 4)
	return binary.BigEndian.AppendUint32(buf, value)
}
