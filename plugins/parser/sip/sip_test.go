package sip

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/metrics"
	"firestige.xyz/tzspd/pkg/plugin"
)

const offerSDP = "v=0\r\n" +
	"o=alice 2890844526 2890844526 IN IP4 192.168.1.100\r\n" +
	"s=Session\r\n" +
	"c=IN IP4 192.168.1.100\r\n" +
	"t=0 0\r\n" +
	"m=audio 49170 RTP/AVP 0 8\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n" +
	"a=rtpmap:8 PCMA/8000\r\n"

const answerSDP = "v=0\r\n" +
	"o=bob 2808844564 2808844564 IN IP4 192.168.1.200\r\n" +
	"s=Session\r\n" +
	"c=IN IP4 192.168.1.200\r\n" +
	"t=0 0\r\n" +
	"m=audio 3456 RTP/AVP 0\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n"

func sipPayload(startLine, callID, cseq, body string) []byte {
	var b strings.Builder
	b.WriteString(startLine + "\r\n")
	b.WriteString("Via: SIP/2.0/UDP 192.168.1.100:5060;branch=z9hG4bK776asdhds\r\n")
	b.WriteString("Max-Forwards: 70\r\n")
	b.WriteString("From: Alice <sip:alice@example.com>;tag=1928301774\r\n")
	b.WriteString("To: Bob <sip:bob@example.com>\r\n")
	b.WriteString("Call-ID: " + callID + "\r\n")
	b.WriteString("CSeq: " + cseq + "\r\n")
	if body != "" {
		b.WriteString("Content-Type: application/sdp\r\n")
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(body))
	b.WriteString(body)
	return []byte(b.String())
}

// message wraps payload in a parsed IPv4/UDP message.
func message(payload []byte, srcPort, dstPort uint16) *core.Message {
	data := append(make([]byte, 28), payload...)
	return &core.Message{
		Data:      data,
		Len:       len(data),
		LinkLen:   14,
		HdrLen:    14 + 20 + 8,
		IPFamily:  core.FamilyIPv4,
		IPProto:   core.ProtoUDP,
		SrcAddr:   netip.MustParseAddr("192.168.1.100"),
		DstAddr:   netip.MustParseAddr("192.168.1.200"),
		SrcIP:     "192.168.1.100",
		DstIP:     "192.168.1.200",
		SrcPort:   srcPort,
		DstPort:   dstPort,
		Parsed:    true,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newParser(t *testing.T, cfg map[string]any) *SIPParser {
	t.Helper()
	p := NewSIPParser().(*SIPParser)
	require.NoError(t, p.Init(cfg))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })
	return p
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected bool
	}{
		{"INVITE", "INVITE sip:bob@example.com SIP/2.0\r\n", true},
		{"REGISTER", "REGISTER sip:example.com SIP/2.0\r\n", true},
		{"status line", "SIP/2.0 200 OK\r\n", true},
		{"method without space", "INVITEX sip:bob@example.com SIP/2.0\r\n", false},
		{"http", "HTTP/1.1 200 OK\r\n", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Detect([]byte(tt.payload)))
		})
	}
}

func TestSIPParser_Init(t *testing.T) {
	p := newParser(t, map[string]any{"ports": []any{5070}, "required": false, "session_ttl": "10m"})
	assert.True(t, p.ports[5070])
	assert.False(t, p.ports[5060])
	assert.False(t, p.config.Required)
	assert.Equal(t, 10*time.Minute, p.config.SessionTTL)

	p = newParser(t, nil)
	assert.True(t, p.ports[5060])
	assert.True(t, p.ports[5061])
	assert.True(t, p.config.Required)

	assert.Error(t, NewSIPParser().Init(map[string]any{"port": 5060}))
}

func TestHandleINVITELabels(t *testing.T) {
	p := newParser(t, nil)
	msg := message(sipPayload("INVITE sip:bob@example.com SIP/2.0", "a84b4c76e66710@pc33", "314159 INVITE", offerSDP), 5060, 5060)

	res, err := p.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, plugin.Continue, res)

	assert.Equal(t, "INVITE", msg.Labels[core.LabelSIPMethod])
	assert.Equal(t, "a84b4c76e66710@pc33", msg.Labels[core.LabelSIPCallID])
	assert.Equal(t, "sip:alice@example.com", msg.Labels[core.LabelSIPFromURI])
	assert.Equal(t, "sip:bob@example.com", msg.Labels[core.LabelSIPToURI])
	assert.Equal(t, "314159 INVITE", msg.Labels[core.LabelSIPCSeq])
	assert.Equal(t, "audio 192.168.1.100:49170 PCMU/8000", msg.Labels[core.LabelSDPMedia])
	assert.Equal(t, "offer", msg.Labels[core.LabelSIPSession])
	assert.NotContains(t, msg.Labels, core.LabelSIPStatusCode)
}

func TestHandleSessionLifecycle(t *testing.T) {
	p := newParser(t, nil)
	ctx := context.Background()
	callID := "lifecycle@pc33"

	invite := message(sipPayload("INVITE sip:bob@example.com SIP/2.0", callID, "1 INVITE", offerSDP), 5060, 5060)
	_, err := p.Handle(ctx, invite)
	require.NoError(t, err)
	assert.Equal(t, 1, p.sessionCache.ItemCount())

	ok := message(sipPayload("SIP/2.0 200 OK", callID, "1 INVITE", answerSDP), 5060, 5060)
	res, err := p.Handle(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, plugin.Continue, res)
	assert.Equal(t, "200", ok.Labels[core.LabelSIPStatusCode])
	assert.Equal(t, "answer", ok.Labels[core.LabelSIPSession])
	assert.Equal(t, "audio 192.168.1.200:3456 PCMU/8000", ok.Labels[core.LabelSDPMedia])
	assert.Equal(t, "audio 192.168.1.100:49170 PCMU/8000", ok.Labels[core.LabelSDPOffer])
	assert.Equal(t, 1, p.sessionCache.ItemCount())

	bye := message(sipPayload("BYE sip:bob@example.com SIP/2.0", callID, "2 BYE", ""), 5060, 5060)
	_, err = p.Handle(ctx, bye)
	require.NoError(t, err)
	assert.Equal(t, "closed", bye.Labels[core.LabelSIPSession])
	assert.Equal(t, 0, p.sessionCache.ItemCount())
}

func TestSessionGaugeFollowsCache(t *testing.T) {
	ctx := context.Background()
	base := testutil.ToFloat64(metrics.SIPSessionsActive)

	p := newParser(t, nil)
	for _, callID := range []string{"gauge-1@pc33", "gauge-2@pc33"} {
		_, err := p.Handle(ctx, message(sipPayload("INVITE sip:bob@example.com SIP/2.0", callID, "1 INVITE", offerSDP), 5060, 5060))
		require.NoError(t, err)
	}
	// re-INVITE of a tracked call
	_, err := p.Handle(ctx, message(sipPayload("INVITE sip:bob@example.com SIP/2.0", "gauge-1@pc33", "2 INVITE", offerSDP), 5060, 5060))
	require.NoError(t, err)
	assert.Equal(t, base+2, testutil.ToFloat64(metrics.SIPSessionsActive))

	_, err = p.Handle(ctx, message(sipPayload("BYE sip:bob@example.com SIP/2.0", "gauge-2@pc33", "3 BYE", ""), 5060, 5060))
	require.NoError(t, err)
	assert.Equal(t, base+1, testutil.ToFloat64(metrics.SIPSessionsActive))

	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, base, testutil.ToFloat64(metrics.SIPSessionsActive))
}

func TestSessionGaugeExpiredOfferReplaced(t *testing.T) {
	ctx := context.Background()
	base := testutil.ToFloat64(metrics.SIPSessionsActive)
	callID := "expired@pc33"

	p := newParser(t, map[string]any{"session_ttl": "10ms"})
	invite := func() {
		_, err := p.Handle(ctx, message(sipPayload("INVITE sip:bob@example.com SIP/2.0", callID, "1 INVITE", offerSDP), 5060, 5060))
		require.NoError(t, err)
	}

	invite()
	time.Sleep(30 * time.Millisecond)
	// the expired offer is still stored; the janitor has not run yet
	invite()

	assert.Equal(t, 1, p.sessionCache.ItemCount())
	assert.Equal(t, base+1, testutil.ToFloat64(metrics.SIPSessionsActive))

	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, base, testutil.ToFloat64(metrics.SIPSessionsActive))
}

func TestHandleAnswerWithoutOffer(t *testing.T) {
	p := newParser(t, nil)

	ok := message(sipPayload("SIP/2.0 200 OK", "orphan@pc33", "1 INVITE", answerSDP), 5060, 5060)
	_, err := p.Handle(context.Background(), ok)
	require.NoError(t, err)

	assert.NotContains(t, ok.Labels, core.LabelSIPSession)
	assert.Equal(t, 0, p.sessionCache.ItemCount())
}

func TestHandleNonSIP(t *testing.T) {
	ctx := context.Background()
	payload := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")

	required := newParser(t, nil)
	res, err := required.Handle(ctx, message(payload, 40000, 8080))
	require.NoError(t, err)
	assert.Equal(t, plugin.Drop, res)

	optional := newParser(t, map[string]any{"required": false})
	msg := message(payload, 40000, 8080)
	res, err = optional.Handle(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, plugin.Continue, res)
	assert.Empty(t, msg.Labels)
}

func TestHandleUnparsedMessage(t *testing.T) {
	p := newParser(t, nil)
	msg := message(sipPayload("OPTIONS sip:bob@example.com SIP/2.0", "x@y", "1 OPTIONS", ""), 5060, 5060)
	msg.Parsed = false

	res, err := p.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, plugin.Drop, res)
	assert.Empty(t, msg.Labels)
}

func TestHandleSIPOnNonStandardPort(t *testing.T) {
	p := newParser(t, nil)
	msg := message(sipPayload("OPTIONS sip:bob@example.com SIP/2.0", "opt@pc33", "7 OPTIONS", ""), 40000, 5080)

	res, err := p.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, plugin.Continue, res)
	assert.Equal(t, "OPTIONS", msg.Labels[core.LabelSIPMethod])
}

func TestParseSDPBody(t *testing.T) {
	t.Run("basic audio SDP", func(t *testing.T) {
		sdp, err := parseSDPBody([]byte(offerSDP))
		require.NoError(t, err)

		assert.Equal(t, netip.MustParseAddr("192.168.1.100"), sdp.connectionIP)
		require.Len(t, sdp.mediaStreams, 1)
		media := sdp.mediaStreams[0]
		assert.Equal(t, "audio", media.mediaType)
		assert.Equal(t, uint16(49170), media.rtpPort)
		assert.Equal(t, uint16(49171), media.rtcpPort)
		assert.False(t, media.rtcpMux)
		assert.Equal(t, "PCMU/8000", media.codec)
		assert.Equal(t, "sendrecv", media.direction)
	})

	t.Run("RTCP-MUX", func(t *testing.T) {
		sdp, err := parseSDPBody([]byte("v=0\r\n" +
			"c=IN IP4 10.0.0.1\r\n" +
			"m=audio 50000 RTP/AVP 0\r\n" +
			"a=rtcp-mux\r\n" +
			"a=rtpmap:0 PCMU/8000\r\n"))
		require.NoError(t, err)

		media := sdp.mediaStreams[0]
		assert.True(t, media.rtcpMux)
		assert.Equal(t, media.rtpPort, media.rtcpPort)
	})

	t.Run("explicit RTCP port", func(t *testing.T) {
		sdp, err := parseSDPBody([]byte("v=0\r\n" +
			"c=IN IP4 10.0.0.1\r\n" +
			"m=audio 50000 RTP/AVP 0\r\n" +
			"a=rtcp:50011 IN IP4 10.0.0.1\r\n"))
		require.NoError(t, err)
		assert.Equal(t, uint16(50011), sdp.mediaStreams[0].rtcpPort)
	})

	t.Run("multiple media streams", func(t *testing.T) {
		sdp, err := parseSDPBody([]byte("v=0\r\n" +
			"c=IN IP6 2001:db8::1\r\n" +
			"m=audio 50000 RTP/AVP 0\r\n" +
			"a=rtpmap:0 PCMU/8000\r\n" +
			"m=video 50002 RTP/AVP 31\r\n" +
			"a=rtpmap:31 H261/90000\r\n" +
			"a=sendonly\r\n"))
		require.NoError(t, err)

		require.Len(t, sdp.mediaStreams, 2)
		assert.Equal(t, "audio [2001:db8::1]:50000 PCMU/8000;video [2001:db8::1]:50002 H261/90000 sendonly", sdp.String())
	})

	t.Run("no media", func(t *testing.T) {
		_, err := parseSDPBody([]byte("v=0\r\nc=IN IP4 10.0.0.1\r\n"))
		assert.Error(t, err)
	})
}

func TestParseConnectionLine(t *testing.T) {
	assert.Equal(t, netip.MustParseAddr("224.2.1.1"), parseConnectionLine("IN IP4 224.2.1.1/127"))
	assert.False(t, parseConnectionLine("IN IP4").IsValid())
	assert.False(t, parseConnectionLine("IN IP4 not-an-ip").IsValid())
}
