// Package pcapfile replays TZSP datagrams recorded in a pcap or pcapng file.
package pcapfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/tzspd/internal/core"
)

// pcapng section header block type.
var ngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source yields the UDP payloads addressed to one port as datagrams.
type Source struct {
	path    string
	port    uint16
	file    *os.File
	reader  packetReader
	skipped int
}

// Open opens a capture file. Only UDP packets whose destination port is
// port are returned; port 0 accepts every UDP packet.
func Open(path string, port int) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("pcap path is required")
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("port %d out of range", port)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	var r packetReader
	if magic, err := br.Peek(4); err == nil && bytes.Equal(magic, ngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read pcapng header %s: %w", path, err)
		}
	} else {
		r, err = pcapgo.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read pcap header %s: %w", path, err)
		}
	}

	return &Source{
		path:   path,
		port:   uint16(port),
		file:   f,
		reader: r,
	}, nil
}

// Next returns the next matching datagram, or io.EOF at the end of the
// file. Packets that are not UDP to the configured port are skipped.
func (s *Source) Next() (core.Datagram, error) {
	for {
		data, ci, err := s.reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return core.Datagram{}, io.EOF
			}
			return core.Datagram{}, fmt.Errorf("failed to read packet: %w", err)
		}

		pkt := gopacket.NewPacket(data, s.reader.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			s.skipped++
			continue
		}
		udp := udpLayer.(*layers.UDP)
		if s.port != 0 && uint16(udp.DstPort) != s.port {
			s.skipped++
			continue
		}

		d := core.Datagram{
			Data:      append([]byte(nil), udp.Payload...),
			Timestamp: ci.Timestamp,
		}
		switch ip := pkt.NetworkLayer().(type) {
		case *layers.IPv4:
			d.Sender = &net.UDPAddr{IP: ip.SrcIP, Port: int(udp.SrcPort)}
		case *layers.IPv6:
			d.Sender = &net.UDPAddr{IP: ip.SrcIP, Port: int(udp.SrcPort)}
		}
		return d, nil
	}
}

// Skipped returns how many packets Next passed over.
func (s *Source) Skipped() int {
	return s.skipped
}

// Close closes the file.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
