package decoder

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	testSrcMAC = net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	testDstMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
)

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

// frame prepends a hand-built Ethernet header to the serialized layers.
// layers.Ethernet is not used because it pads short frames to 60 bytes.
func frame(t testing.TB, next layers.EthernetType, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	out := make([]byte, 0, 128)
	out = append(out, testDstMAC...)
	out = append(out, testSrcMAC...)
	out = append(out, byte(next>>8), byte(next))
	return append(out, serialize(t, ls...)...)
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.IP{192, 168, 1, 10},
		DstIP:    net.IP{10, 0, 0, 1},
	}
}

// udpFrame builds Ethernet + IPv4 + UDP 5060->5061 carrying payload.
func udpFrame(t testing.TB, payload string) []byte {
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 5060, DstPort: 5061}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return frame(t, layers.EthernetTypeIPv4, ip, udp, gopacket.Payload(payload))
}
