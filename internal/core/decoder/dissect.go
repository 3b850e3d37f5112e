// Package decoder implements L2-L4 dissection of TZSP-encapsulated frames.
package decoder

import (
	"fmt"
	"time"

	"firestige.xyz/tzspd/internal/core"
)

// Dissect decodes an Ethernet frame down to the transport layer.
//
// captureLen bounds the bytes considered part of the capture; values outside
// [0, len(frame)] are clamped to len(frame). The only hard error is a frame
// too short for an Ethernet header. Everything past it degrades to a record
// with Parsed=false: unknown IP version, unknown transport protocol,
// truncated headers and non-initial fragments.
//
// The returned Message aliases frame.
func Dissect(frame []byte, captureLen int, ts time.Time) (core.Message, error) {
	end := captureLen
	if end < 0 || end > len(frame) {
		end = len(frame)
	}
	if end < linkHeaderLen {
		return core.Message{}, fmt.Errorf("%w: %d bytes", core.ErrTruncatedFrame, end)
	}
	frame = frame[:end]

	l := decodeLink(frame)
	linkLen := linkHeaderLen + l.shimLen

	msg := core.Message{
		LinkLen:   linkLen,
		HdrLen:    linkLen,
		SrcMAC:    l.srcMAC,
		DstMAC:    l.dstMAC,
		Timestamp: ts,
	}
	if linkLen > end {
		msg.Data = frame[end:]
		return msg, nil
	}
	msg.Data = frame[linkLen:]
	msg.Len = len(msg.Data)

	n, ok := decodeNetwork(msg.Data)
	if !ok {
		return msg, nil
	}

	msg.IPFamily = n.family
	msg.IPProto = n.proto
	msg.SrcAddr = n.src
	msg.DstAddr = n.dst
	msg.SrcIP = n.src.String()
	msg.DstIP = n.dst.String()
	msg.Fragmented = n.fragmented
	msg.FragOffset = n.fragOffset
	if n.malformed {
		return msg, nil
	}
	msg.HdrLen = linkLen + n.hdrLen
	if n.hdrLen > len(msg.Data) {
		return msg, nil
	}

	t := decodeTransport(msg.Data[n.hdrLen:], n.proto, n.fragOffset)
	msg.HdrLen += t.hdrLen
	if !t.located {
		return msg, nil
	}

	msg.SrcPort = t.srcPort
	msg.DstPort = t.dstPort
	msg.TCPFlags = t.tcpFlags
	msg.Parsed = true
	return msg, nil
}
