// Package sip implements the sip action.
// Parses SIP signaling carried in the transport payload, labels the message
// with its key headers, and correlates SDP offers and answers per Call-ID.
package sip

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"
	"github.com/patrickmn/go-cache"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/log"
	"firestige.xyz/tzspd/internal/metrics"
	"firestige.xyz/tzspd/pkg/plugin"
)

const (
	defaultSessionTTL = time.Hour
	defaultCleanup    = 5 * time.Minute
	minSIPLen         = 8
)

var defaultPorts = []int{5060, 5061}

// SIP request methods recognized by the payload check.
var sipMethods = [][]byte{
	[]byte("INVITE"),
	[]byte("ACK"),
	[]byte("BYE"),
	[]byte("CANCEL"),
	[]byte("REGISTER"),
	[]byte("OPTIONS"),
	[]byte("PRACK"),
	[]byte("SUBSCRIBE"),
	[]byte("NOTIFY"),
	[]byte("PUBLISH"),
	[]byte("INFO"),
	[]byte("REFER"),
	[]byte("MESSAGE"),
	[]byte("UPDATE"),
}

// SIP version prefix of a status line.
var sipVersion = []byte("SIP/2.0 ")

// Config represents sip action options.
type Config struct {
	Ports      []int         `mapstructure:"ports"`       // transport ports always tried as SIP, default 5060 and 5061
	Required   bool          `mapstructure:"required"`    // drop messages that are not SIP
	SessionTTL time.Duration `mapstructure:"session_ttl"` // how long a call is tracked after its last offer or answer
}

// SIPParser parses SIP signaling messages.
type SIPParser struct {
	name         string
	config       Config
	ports        map[uint16]bool
	delegate     *parser.PacketParser
	sessionCache *cache.Cache // Call-ID → *sipSession

	gaugeMu  sync.Mutex
	reported int // sessions currently counted in SIPSessionsActive
}

// sipSession is an INVITE offer waiting for, or paired with, its 200 OK.
type sipSession struct {
	offerSDP *sdpInfo
}

// NewSIPParser creates a new sip action.
func NewSIPParser() plugin.Action {
	return &SIPParser{
		name: "sip",
		config: Config{
			Required:   true,
			SessionTTL: defaultSessionTTL,
		},
	}
}

// Name returns the plugin name.
func (p *SIPParser) Name() string {
	return p.name
}

// Init initializes the parser with configuration.
func (p *SIPParser) Init(cfg map[string]any) error {
	if err := plugin.DecodeOptions(cfg, &p.config); err != nil {
		return err
	}
	if p.config.SessionTTL <= 0 {
		p.config.SessionTTL = defaultSessionTTL
	}
	if len(p.config.Ports) == 0 {
		p.config.Ports = defaultPorts
	}

	p.ports = make(map[uint16]bool, len(p.config.Ports))
	for _, port := range p.config.Ports {
		if port > 0 && port <= 65535 {
			p.ports[uint16(port)] = true
		}
	}

	p.delegate = parser.NewPacketParser(newLoggerAdapter(log.GetLogger().WithField("action", p.name)))
	p.sessionCache = cache.New(p.config.SessionTTL, defaultCleanup)
	p.sessionCache.OnEvicted(func(string, interface{}) {
		p.syncSessionGauge()
	})
	return nil
}

// Start starts the parser.
func (p *SIPParser) Start(ctx context.Context) error {
	return nil
}

// Stop drops every tracked session.
func (p *SIPParser) Stop(ctx context.Context) error {
	if p.sessionCache != nil {
		p.sessionCache.Flush()
		p.syncSessionGauge()
	}
	return nil
}

// syncSessionGauge moves SIPSessionsActive by the change in this parser's
// cache size since the last call. Expired entries count until the janitor
// or a replacing INVITE removes them.
func (p *SIPParser) syncSessionGauge() {
	p.gaugeMu.Lock()
	defer p.gaugeMu.Unlock()
	n := p.sessionCache.ItemCount()
	metrics.SIPSessionsActive.Add(float64(n - p.reported))
	p.reported = n
}

// Handle parses the payload as SIP and labels msg with its key headers.
// Non-SIP messages are dropped when the action is required.
func (p *SIPParser) Handle(ctx context.Context, msg *core.Message) (plugin.Result, error) {
	payload := msg.Payload()
	if !msg.Parsed || !p.canHandle(msg, payload) {
		return p.skip(), nil
	}

	sipMsg, err := p.delegate.ParseMessage(payload)
	if err != nil {
		logger := log.GetLogger()
		if logger.IsDebugEnabled() {
			logger.WithError(err).
				WithField("profile", msg.ProfileName).
				WithField("src", msg.SrcIP).
				WithField("dst", msg.DstIP).
				Debug("failed to parse SIP message")
		}
		return p.skip(), nil
	}

	p.label(msg, sipMsg)
	p.trackSession(msg, sipMsg)
	return plugin.Continue, nil
}

func (p *SIPParser) skip() plugin.Result {
	if p.config.Required {
		return plugin.Drop
	}
	return plugin.Continue
}

// canHandle checks if this message is likely SIP: a configured port or a
// SIP request/status line prefix.
func (p *SIPParser) canHandle(msg *core.Message, payload []byte) bool {
	if len(payload) < minSIPLen {
		return false
	}
	if p.ports[msg.SrcPort] || p.ports[msg.DstPort] {
		return true
	}
	return Detect(payload)
}

// Detect reports whether data starts like a SIP request or response.
func Detect(data []byte) bool {
	if bytes.HasPrefix(data, sipVersion) {
		return true
	}
	for _, method := range sipMethods {
		if bytes.HasPrefix(data, method) && len(data) > len(method) && data[len(method)] == ' ' {
			return true
		}
	}
	return false
}

// label copies the key headers into msg labels.
func (p *SIPParser) label(msg *core.Message, sipMsg sip.Message) {
	switch m := sipMsg.(type) {
	case sip.Request:
		msg.SetLabel(core.LabelSIPMethod, string(m.Method()))
	case sip.Response:
		msg.SetLabel(core.LabelSIPStatusCode, strconv.Itoa(int(m.StatusCode())))
	}
	if callID, ok := sipMsg.CallID(); ok {
		msg.SetLabel(core.LabelSIPCallID, callID.Value())
	}
	if from, ok := sipMsg.From(); ok && from.Address != nil {
		msg.SetLabel(core.LabelSIPFromURI, from.Address.String())
	}
	if to, ok := sipMsg.To(); ok && to.Address != nil {
		msg.SetLabel(core.LabelSIPToURI, to.Address.String())
	}
	if cseq, ok := sipMsg.CSeq(); ok {
		msg.SetLabel(core.LabelSIPCSeq, cseq.Value())
	}
}

// trackSession stores INVITE offers, pairs them with the 200 OK answer and
// forgets the call on BYE or CANCEL.
func (p *SIPParser) trackSession(msg *core.Message, sipMsg sip.Message) {
	callID := msg.Labels[core.LabelSIPCallID]
	if callID == "" {
		return
	}

	var method sip.RequestMethod
	var inviteOK bool
	switch m := sipMsg.(type) {
	case sip.Request:
		method = m.Method()
	case sip.Response:
		if cseq, ok := sipMsg.CSeq(); ok {
			inviteOK = m.StatusCode() == 200 && cseq.MethodName == sip.INVITE
		}
	}

	if method == sip.BYE || method == sip.CANCEL {
		if _, found := p.sessionCache.Get(callID); found {
			p.sessionCache.Delete(callID)
			msg.SetLabel(core.LabelSIPSession, "closed")
		}
		return
	}

	sdp := sdpOf(sipMsg)
	if sdp == nil {
		return
	}
	msg.SetLabel(core.LabelSDPMedia, sdp.String())

	switch {
	case method == sip.INVITE:
		// a re-INVITE replaces the offer
		p.sessionCache.Set(callID, &sipSession{offerSDP: sdp}, cache.DefaultExpiration)
		p.syncSessionGauge()
		msg.SetLabel(core.LabelSIPSession, "offer")

	case inviteOK:
		cached, found := p.sessionCache.Get(callID)
		if !found {
			return
		}
		session := cached.(*sipSession)
		// answered calls stay tracked until BYE or CANCEL
		p.sessionCache.Set(callID, session, cache.DefaultExpiration)
		msg.SetLabel(core.LabelSIPSession, "answer")
		msg.SetLabel(core.LabelSDPOffer, session.offerSDP.String())
	}
}

// sdpOf parses the body of an application/sdp message.
func sdpOf(sipMsg sip.Message) *sdpInfo {
	ct, ok := sipMsg.ContentType()
	if !ok || !strings.Contains(strings.ToLower(ct.Value()), "application/sdp") {
		return nil
	}
	sdp, err := parseSDPBody([]byte(sipMsg.Body()))
	if err != nil {
		return nil
	}
	return sdp
}
