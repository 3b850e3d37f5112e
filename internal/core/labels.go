package core

// Labels represents key-value metadata attached by pipeline actions.
type Labels map[string]string

// Label naming constants following {protocol}.{field} convention.
const (
	LabelSIPMethod     = "sip.method"
	LabelSIPCallID     = "sip.call_id"
	LabelSIPFromURI    = "sip.from_uri"
	LabelSIPToURI      = "sip.to_uri"
	LabelSIPStatusCode = "sip.status_code"
	LabelSIPCSeq       = "sip.cseq"

	LabelSIPSession = "sip.session" // offer, answer or closed
	LabelSDPMedia   = "sdp.media"   // media lines as "audio 10.0.0.1:49170 PCMU/8000", ";" separated
	LabelSDPOffer   = "sdp.offer"   // on an answer, the media of the INVITE it accepts
)

// SetLabel stores a label, allocating the map on first use.
func (m *Message) SetLabel(key, value string) {
	if m.Labels == nil {
		m.Labels = make(Labels)
	}
	m.Labels[key] = value
}
