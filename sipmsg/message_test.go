package sipmsg

import (
	"net"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestMessageBodyReturnsBytesAfterDelimiter(t *testing.T) {
	is := is.New(t)
	msg := &Message{Raw: []byte(inviteWithBody)}
	is.Equal(string(msg.Body()), "body")
}

func TestMessageBodyNoDelimiter(t *testing.T) {
	is := is.New(t)
	msg := &Message{Raw: []byte("INVITE sip:bob@biloxi.com SIP/2.0\r\n")}
	is.True(msg.Body() == nil)
}

func TestGetMsgHeaderRendersNgrepLine(t *testing.T) {
	is := is.New(t)
	arrival := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	msg := &Message{
		Raw:         []byte("INVITE sip:bob@biloxi.com SIP/2.0\r\nCall-ID: c1\r\nContent-Length: 0\r\n\r\n"),
		Arrival:     arrival,
		Source:      NewEndpoint(net.ParseIP("10.0.0.1"), 5060),
		Destination: NewEndpoint(net.ParseIP("10.0.0.2"), 5060),
		ReqResp:     MethodInvite,
		CSeq:        1,
		CallID:      "c1",
	}

	line := GetMsgHeader(msg)
	is.Equal(line, "2024-03-01 12:30:00.000 10.0.0.1:5060 -> 10.0.0.2:5060 INVITE 1 c1")
}

func TestGetMsgHeaderIncludesResponseText(t *testing.T) {
	is := is.New(t)
	msg := &Message{
		Arrival:     time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Source:      NewEndpoint(net.ParseIP("10.0.0.2"), 5060),
		Destination: NewEndpoint(net.ParseIP("10.0.0.1"), 5060),
		ReqResp:     Method(486),
		RespText:    "Busy Here",
		CSeq:        1,
		CallID:      "c1",
	}

	line := GetMsgHeader(msg)
	is.Equal(line, "2024-03-01 12:30:00.000 10.0.0.2:5060 -> 10.0.0.1:5060 486 Busy Here 1 c1")
}
