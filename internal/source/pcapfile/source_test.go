package pcapfile

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tzspPayload = []byte{0x01, 0x00, 0x00, 0x01, 0x01, 0xDE, 0xAD, 0xBE, 0xEF}

func packet(t *testing.T, transport gopacket.SerializableLayer, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
		DstMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4,
		IHL:     5,
		TTL:     64,
		SrcIP:   net.IP{10, 1, 1, 1},
		DstIP:   net.IP{10, 1, 1, 2},
	}
	switch l := transport.(type) {
	case *layers.UDP:
		ip.Protocol = layers.IPProtocolUDP
		require.NoError(t, l.SetNetworkLayerForChecksum(ip))
	case *layers.TCP:
		ip.Protocol = layers.IPProtocolTCP
		require.NoError(t, l.SetNetworkLayerForChecksum(ip))
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, transport, gopacket.Payload(payload)))
	return buf.Bytes()
}

func writePcap(t *testing.T, ts time.Time, packets ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for _, p := range packets {
		ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(p), Length: len(p)}
		require.NoError(t, w.WritePacket(ci, p))
	}
	return path
}

func TestSourceFiltersByPort(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	path := writePcap(t, ts,
		packet(t, &layers.TCP{SrcPort: 1234, DstPort: 37008, SYN: true}, nil),
		packet(t, &layers.UDP{SrcPort: 40000, DstPort: 53}, []byte("dns")),
		packet(t, &layers.UDP{SrcPort: 40001, DstPort: 37008}, tzspPayload),
	)

	src, err := Open(path, 37008)
	require.NoError(t, err)
	defer src.Close()

	d, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, tzspPayload, d.Data)
	assert.Equal(t, "10.1.1.1:40001", d.Sender.String())
	assert.True(t, ts.Equal(d.Timestamp))

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, src.Skipped())
}

func TestSourceAnyPort(t *testing.T) {
	path := writePcap(t, time.Now(),
		packet(t, &layers.UDP{SrcPort: 40000, DstPort: 53}, []byte("dns")),
		packet(t, &layers.UDP{SrcPort: 40001, DstPort: 37008}, tzspPayload),
	)

	src, err := Open(path, 0)
	require.NoError(t, err)
	defer src.Close()

	var n int
	for {
		_, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("", 37008)
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing.pcap"), 37008)
	assert.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(garbage, []byte("not a capture file at all"), 0o644))
	_, err = Open(garbage, 37008)
	assert.Error(t, err)

	_, err = Open(garbage, 70000)
	assert.Error(t, err)
}
