package sipmsg

import (
	"fmt"
	"time"
)

// Message is a captured SIP message. It is created in "raw" state, holding
// only the bytes needed to cheaply extract a Call-ID; Parse fills the rest
// of the structured fields and is idempotent, matching sip_parse_msg's
// lazy-parse behaviour in sip.c.
type Message struct {
	// Raw is the original payload this Message was parsed from.
	Raw []byte

	Arrival     time.Time
	Source      Endpoint
	Destination Endpoint
	Transport   Transport

	parsed bool

	ReqResp   Method
	RespText  string // non-standard reason text, if it differs from the default
	CSeq      int
	From      string
	FromUser  string
	To        string
	ToUser    string
	ToTag     bool
	CallID    string
	XCallID   string
	Reason    string
	Warning   int
	Retrans   *Message // previous message this one duplicates, if any

	Medias []MediaDescriptor
}

// NewMessage creates an unparsed Message around payload. Call GetCallID on
// the payload first to decide whether it's worth keeping.
func NewMessage(payload []byte, arrival time.Time, src, dst Endpoint, transport Transport) *Message {
	return &Message{
		Raw:         payload,
		Arrival:     arrival,
		Source:      src,
		Destination: dst,
		Transport:   transport,
	}
}

// Parsed reports whether Parse has already filled the structured fields.
func (m *Message) Parsed() bool { return m.parsed }

// IsRequest reports whether this message is a SIP request as opposed to a
// response, matching msg_is_request (reqresp < 100).
func (m *Message) IsRequest() bool {
	return m.ReqResp.IsRequest()
}

// Parse fills the structured fields of m from its raw payload. It is
// idempotent: calling it again after the first successful parse is a no-op,
// matching sip_parse_msg's "!msg->cseq" idempotency check generalized to a
// parsed flag.
func (m *Message) Parse() {
	if m.parsed {
		return
	}
	parsePayload(m, m.Raw)
	m.parsed = true
}

// Body returns the message body: the bytes after the header/body delimiter.
// Named distinctly from "payload" since that term is reserved, per
// msg_get_payload in sip_msg.c, for the entire raw captured message.
func (m *Message) Body() []byte {
	return bodyOf(m.Raw)
}

// GetMsgHeader renders the ngrep-style one-line summary of m, matching
// sip_get_msg_header's "date time src -> dst" shape extended with the
// method/CSeq/Call-ID fields msg_get_attribute exposes alongside it.
func GetMsgHeader(m *Message) string {
	methodOrCode := m.ReqResp.String()
	if m.RespText != "" {
		methodOrCode += " " + m.RespText
	}
	return fmt.Sprintf("%s %s -> %s %s %d %s",
		m.Arrival.Format("2006-01-02 15:04:05.000"),
		m.Source, m.Destination, methodOrCode, m.CSeq, m.CallID)
}
