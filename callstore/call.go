package callstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sipwatch/sipwatch/sipmsg"
)

// State is the dialog state machine driven by call_update_state in
// sip_call.c, extended with an explicit Unknown zero value for calls whose
// first message hasn't been classified as an INVITE dialog at all.
type State int

const (
	StateUnknown State = iota
	StateCallSetup
	StateInCall
	StateCancelled
	StateRejected
	StateBusy
	StateDiverted
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateCallSetup:
		return "CALL SETUP"
	case StateInCall:
		return "IN CALL"
	case StateCancelled:
		return "CANCELLED"
	case StateRejected:
		return "REJECTED"
	case StateBusy:
		return "BUSY"
	case StateDiverted:
		return "DIVERTED"
	case StateCompleted:
		return "COMPLETED"
	default:
		return ""
	}
}

// terminal reports whether s ends the dialog for the purposes of active-list
// membership; see the "active membership" decision in DESIGN.md.
func (s State) terminal() bool {
	switch s {
	case StateCancelled, StateRejected, StateCompleted:
		return true
	default:
		return false
	}
}

// FilterVerdict is a Call's memoized outcome of the filter engine's
// AND-of-filters evaluation, matching sip_call_t.filtered in sip.h.
type FilterVerdict int

const (
	VerdictUnknown FilterVerdict = iota
	VerdictPass
	VerdictReject
)

// Call is one SIP dialog: all messages sharing a Call-ID, plus the RTP
// streams its SDP negotiated. Grounded on sip_call_t (sip.h) and its
// accessors in sip_call.c.
type Call struct {
	CallID  string
	XCallID string // literal X-Call-ID text until resolved against the registry
	xcall   *Call  // resolved back-reference; never an ownership edge

	Index   uint64
	Locked  bool
	State   State
	Warning int
	Reason  string

	inviteCSeq int
	convStart  *sipmsg.Message
	convEnd    *sipmsg.Message

	Messages []*sipmsg.Message
	Streams  []*RTPStream

	changed  bool
	filtered FilterVerdict

	lastActivity time.Time
}

// newCall creates an empty call, matching call_create.
func newCall(callID, xCallID string, index uint64) *Call {
	return &Call{
		CallID:   callID,
		XCallID:  xCallID,
		Index:    index,
		filtered: VerdictUnknown,
	}
}

// HasChanged reports whether the call was mutated since creation, matching
// call_has_changed. Unlike the registry-wide change flag, this is not
// cleared by reading it; it is informational for consumers that track calls
// individually.
func (c *Call) HasChanged() bool { return c.changed }

// FilterVerdict returns the call's cached filter verdict, matching
// call->filtered. The filters package is the primary reader/writer of this
// cache; it is exported so other consumers can inspect it without forcing
// re-evaluation.
func (c *Call) FilterVerdict() FilterVerdict { return c.filtered }

// SetFilterVerdict stores a freshly computed verdict, matching the
// assignment side of filter_check_call.
func (c *Call) SetFilterVerdict(v FilterVerdict) { c.filtered = v }

// ResolvedXCall returns the Call this call's X-Call-ID resolved to, or nil
// if it is still unresolved (or this call has no X-Call-ID at all).
func (c *Call) ResolvedXCall() *Call { return c.xcall }

// addMessage appends msg to the call, marks it changed, and invalidates the
// cached filter verdict, matching call_add_message plus the invalidation
// rule from Invariant 6.
func (c *Call) addMessage(msg *sipmsg.Message) {
	c.Messages = append(c.Messages, msg)
	c.changed = true
	c.filtered = VerdictUnknown
	c.lastActivity = msg.Arrival
}

// addStream appends stream, matching call_add_stream.
func (c *Call) addStream(stream *RTPStream) {
	c.Streams = append(c.Streams, stream)
	c.changed = true
	c.filtered = VerdictUnknown
}

// IsInvite reports whether the dialog's first message is an INVITE, matching
// call_is_invite.
func (c *Call) IsInvite() bool {
	if len(c.Messages) == 0 {
		return false
	}
	return c.Messages[0].ReqResp == sipmsg.MethodInvite
}

// MsgCount matches call_msg_count.
func (c *Call) MsgCount() int { return len(c.Messages) }

// retransCheck marks msg.Retrans if an earlier message on the same
// source/destination pair carried the same raw message (compared
// case-insensitively, as strcasecmp does in the original), matching
// call_msg_retrans_check's use of msg_get_payload, which returns the whole
// captured packet rather than just the body after the header delimiter.
func (c *Call) retransCheck(msg *sipmsg.Message) {
	for i := len(c.Messages) - 2; i >= 0; i-- {
		prev := c.Messages[i]
		if !prev.Source.Equal(msg.Source) || !prev.Destination.Equal(msg.Destination) {
			continue
		}
		if strings.EqualFold(string(prev.Raw), string(msg.Raw)) {
			msg.Retrans = prev
			return
		}
	}
}

// updateState advances the dialog state machine on msg, matching
// call_update_state exactly, including its quirk of only running for
// INVITE-initiated dialogs.
func (c *Call) updateState(msg *sipmsg.Message) {
	if !c.IsInvite() {
		return
	}
	reqresp := int(msg.ReqResp)

	if c.State != StateUnknown {
		switch c.State {
		case StateCallSetup:
			switch {
			case msg.ReqResp == sipmsg.MethodAck && c.inviteCSeq == msg.CSeq:
				c.State = StateInCall
				c.convStart = msg
			case msg.ReqResp == sipmsg.MethodCancel:
				c.State = StateCancelled
			case reqresp == 480 || reqresp == 486 || reqresp == 600:
				c.State = StateBusy
			case reqresp > 400 && c.inviteCSeq == msg.CSeq:
				c.State = StateRejected
			case reqresp > 300:
				c.State = StateDiverted
			}
		case StateInCall:
			if msg.ReqResp == sipmsg.MethodBye {
				c.State = StateCompleted
				c.convEnd = msg
			}
		default:
			if msg.ReqResp == sipmsg.MethodInvite && c.State != StateInCall {
				c.inviteCSeq = msg.CSeq
				c.State = StateCallSetup
			}
		}
	} else if msg.ReqResp == sipmsg.MethodInvite {
		c.inviteCSeq = msg.CSeq
		c.State = StateCallSetup
	}
}

// addXCall records that xcall names c as its X-Call-ID parent, matching
// call_add_xcall. The reference is not owning: xcall's lifetime is managed
// solely by the registry.
func (c *Call) addXCall(xcall *Call) {
	if c == nil || xcall == nil {
		return
	}
	c.changed = true
	c.filtered = VerdictUnknown
	xcall.xcall = c
}

// Attribute renders id to its string form, matching call_get_attribute: it
// falls through to the first message's attribute for anything it doesn't
// know about itself.
func (c *Call) Attribute(id AttributeID) string {
	switch id {
	case AttrCallIndex:
		return strconv.FormatUint(c.Index, 10)
	case AttrCallID:
		return c.CallID
	case AttrXCallID:
		return c.XCallID
	case AttrMsgCount:
		return strconv.Itoa(len(c.Messages))
	case AttrRTPCount:
		return strconv.Itoa(len(c.Streams))
	case AttrState:
		return c.State.String()
	case AttrTransport:
		if len(c.Messages) == 0 {
			return ""
		}
		return c.Messages[0].Transport.String()
	case AttrConvDuration:
		return durationAttr(c.convStart, c.convEnd)
	case AttrTotalDuration:
		if len(c.Messages) == 0 {
			return ""
		}
		return durationAttr(c.Messages[0], c.Messages[len(c.Messages)-1])
	case AttrReason:
		return c.Reason
	case AttrWarning:
		if c.Warning == 0 {
			return ""
		}
		return strconv.Itoa(c.Warning)
	default:
		if len(c.Messages) == 0 {
			return ""
		}
		return messageAttribute(c.Messages[0], id)
	}
}

func durationAttr(start, end *sipmsg.Message) string {
	if start == nil || end == nil {
		return ""
	}
	return end.Arrival.Sub(start.Arrival).Round(time.Second).String()
}

// compareAttribute implements call_attr_compare: index and message count
// compare numerically, everything else compares as strings with empty
// values sorting last.
func compareAttribute(a, b *Call, id AttributeID) int {
	switch id {
	case AttrCallIndex:
		return compareUint64(a.Index, b.Index)
	case AttrMsgCount:
		return compareInt(len(a.Messages), len(b.Messages))
	default:
		av, bv := a.Attribute(id), b.Attribute(id)
		switch {
		case av == "" && bv == "":
			return 0
		case bv == "":
			return -1
		case av == "":
			return 1
		default:
			return strings.Compare(av, bv)
		}
	}
}

func compareUint64(a, b uint64) int {
	switch {
	case a == b:
		return 0
	case a > b:
		return 1
	default:
		return -1
	}
}

func compareInt(a, b int) int {
	switch {
	case a == b:
		return 0
	case a > b:
		return 1
	default:
		return -1
	}
}

// messageAttribute renders id from msg, matching msg_get_attribute's
// coverage of the attribute ids call_get_attribute defers to it.
func messageAttribute(msg *sipmsg.Message, id AttributeID) string {
	switch id {
	case AttrSource:
		return msg.Source.String()
	case AttrDestination:
		return msg.Destination.String()
	case AttrMethod:
		if msg.RespText != "" {
			return fmt.Sprintf("%d %s", int(msg.ReqResp), msg.RespText)
		}
		return msg.ReqResp.String()
	case AttrFrom, AttrSIPFrom:
		return msg.From
	case AttrTo, AttrSIPTo:
		return msg.To
	case AttrCSeq:
		return strconv.Itoa(msg.CSeq)
	case AttrDate:
		return msg.Arrival.Format("2006-01-02")
	case AttrTime:
		return msg.Arrival.Format("15:04:05.000")
	case AttrCallID:
		return msg.CallID
	case AttrXCallID:
		return msg.XCallID
	default:
		return ""
	}
}
