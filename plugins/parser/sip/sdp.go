package sip

import (
	"bytes"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// sdpInfo contains parsed SDP information.
type sdpInfo struct {
	connectionIP netip.Addr    // c= line IP
	mediaStreams []mediaStream // m= lines
}

// mediaStream represents one m= line with associated a= attributes.
type mediaStream struct {
	mediaType string // "audio" or "video"
	rtpPort   uint16 // RTP port from m= line
	rtcpPort  uint16 // RTCP port (rtpPort+1 or from a=rtcp:)
	rtcpMux   bool   // Whether RTCP is multiplexed on RTP port
	codec     string // From the first a=rtpmap:
	direction string // sendrecv/sendonly/recvonly/inactive
}

// String renders the media streams as "audio 10.0.0.1:49170 PCMU/8000",
// separated by ";".
func (s *sdpInfo) String() string {
	parts := make([]string, 0, len(s.mediaStreams))
	for _, m := range s.mediaStreams {
		endpoint := netip.AddrPortFrom(s.connectionIP, m.rtpPort).String()
		if !s.connectionIP.IsValid() {
			endpoint = ":" + strconv.Itoa(int(m.rtpPort))
		}
		part := m.mediaType + " " + endpoint
		if m.codec != "" {
			part += " " + m.codec
		}
		if m.direction != "sendrecv" {
			part += " " + m.direction
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ";")
}

// parseSDPBody parses SDP body (c=, m=, a= lines).
func parseSDPBody(body []byte) (*sdpInfo, error) {
	sdp := &sdpInfo{
		mediaStreams: make([]mediaStream, 0, 2),
	}

	lines := bytes.Split(body, []byte("\n"))
	var sessionIP netip.Addr
	var currentMedia *mediaStream

	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) < 2 || line[1] != '=' {
			continue
		}

		typ := line[0]
		value := string(bytes.TrimSpace(line[2:]))

		switch typ {
		case 'c':
			// c=IN IP4 192.168.1.100 or c=IN IP6 2001:db8::1
			ip := parseConnectionLine(value)
			if ip.IsValid() {
				if currentMedia != nil {
					sdp.connectionIP = ip
				} else {
					sessionIP = ip
				}
			}

		case 'm':
			if currentMedia != nil {
				sdp.mediaStreams = append(sdp.mediaStreams, *currentMedia)
			}

			// m=audio 49170 RTP/AVP 0 8
			parts := strings.Fields(value)
			if len(parts) < 3 {
				currentMedia = nil
				continue
			}

			port, err := strconv.ParseUint(parts[1], 10, 16)
			if err != nil {
				currentMedia = nil
				continue
			}

			currentMedia = &mediaStream{
				mediaType: parts[0],
				rtpPort:   uint16(port),
				rtcpPort:  uint16(port) + 1,
				direction: "sendrecv",
			}

		case 'a':
			if currentMedia == nil {
				continue
			}

			switch {
			case value == "rtcp-mux":
				currentMedia.rtcpMux = true
				currentMedia.rtcpPort = currentMedia.rtpPort

			case strings.HasPrefix(value, "rtcp:"):
				// a=rtcp:53020 [IN IP4 addr]
				fields := strings.Fields(value[5:])
				if len(fields) > 0 {
					if port, err := strconv.ParseUint(fields[0], 10, 16); err == nil {
						currentMedia.rtcpPort = uint16(port)
					}
				}

			case strings.HasPrefix(value, "rtpmap:"):
				if currentMedia.codec == "" {
					parts := strings.SplitN(value[7:], " ", 2)
					if len(parts) == 2 {
						currentMedia.codec = parts[1]
					}
				}

			case value == "sendrecv" || value == "sendonly" || value == "recvonly" || value == "inactive":
				currentMedia.direction = value
			}
		}
	}

	if currentMedia != nil {
		sdp.mediaStreams = append(sdp.mediaStreams, *currentMedia)
	}

	// Use session-level c= if no media-level c=
	if !sdp.connectionIP.IsValid() && sessionIP.IsValid() {
		sdp.connectionIP = sessionIP
	}

	if len(sdp.mediaStreams) == 0 {
		return nil, fmt.Errorf("no media streams in SDP")
	}

	return sdp, nil
}

// parseConnectionLine extracts the address from a c= line value.
func parseConnectionLine(value string) netip.Addr {
	parts := strings.Fields(value)
	if len(parts) < 3 {
		return netip.Addr{}
	}

	// parts[0] = "IN", parts[1] = "IP4"/"IP6", parts[2] = address[/ttl]
	addr := parts[2]
	if idx := strings.IndexByte(addr, '/'); idx != -1 {
		addr = addr[:idx]
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Addr{}
	}
	return ip
}
