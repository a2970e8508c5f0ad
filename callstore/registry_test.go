package callstore

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sipwatch/sipwatch/sipmsg"
)

func testPacket(method, callID, xCallID string) Packet {
	xcid := ""
	if xCallID != "" {
		xcid = "X-Call-ID: " + xCallID + "\r\n"
	}
	return Packet{
		Source:      sipmsg.NewEndpoint(net.ParseIP("10.0.0.1"), 5060),
		Destination: sipmsg.NewEndpoint(net.ParseIP("10.0.0.2"), 5060),
		Transport:   sipmsg.TransportUDP,
		Timestamp:   time.Now(),
		Payload: []byte(method + " sip:bob@biloxi.com SIP/2.0\r\n" +
			"From: <sip:alice@atlanta.com>\r\n" +
			"To: <sip:bob@biloxi.com>\r\n" +
			"Call-ID: " + callID + "\r\n" +
			xcid +
			"CSeq: 1 " + method + "\r\n" +
			"Content-Length: 0\r\n\r\n"),
	}
}

func response(code int, callID string, cseq int, method string) Packet {
	return Packet{
		Source:      sipmsg.NewEndpoint(net.ParseIP("10.0.0.2"), 5060),
		Destination: sipmsg.NewEndpoint(net.ParseIP("10.0.0.1"), 5060),
		Transport:   sipmsg.TransportUDP,
		Timestamp:   time.Now(),
		Payload: []byte("SIP/2.0 " + strconv.Itoa(code) + " status\r\n" +
			"From: <sip:alice@atlanta.com>\r\n" +
			"To: <sip:bob@biloxi.com>\r\n" +
			"Call-ID: " + callID + "\r\n" +
			"CSeq: " + strconv.Itoa(cseq) + " " + method + "\r\n" +
			"Content-Length: 0\r\n\r\n"),
	}
}

func TestCheckPacketAdmitsInviteOnly(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 10}, MatchOpts{Invite: true}, SortOpts{})
	is.NoErr(err)

	_, err = reg.CheckPacket(testPacket("INVITE", "c1", ""))
	is.NoErr(err)
	_, err = reg.CheckPacket(testPacket("REGISTER", "c2", ""))
	is.NoErr(err)

	is.True(reg.FindByCallID("c1") != nil)
	is.True(reg.FindByCallID("c2") == nil)
}

func TestCheckPacketAppendsDialogInArrivalOrder(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 10}, MatchOpts{}, SortOpts{})
	is.NoErr(err)

	_, err = reg.CheckPacket(testPacket("INVITE", "c1", ""))
	is.NoErr(err)
	_, err = reg.CheckPacket(response(200, "c1", 1, "INVITE"))
	is.NoErr(err)
	_, err = reg.CheckPacket(testPacket("ACK", "c1", ""))
	is.NoErr(err)
	_, err = reg.CheckPacket(testPacket("BYE", "c1", ""))
	is.NoErr(err)

	call := reg.FindByCallID("c1")
	is.Equal(call.MsgCount(), 4)
	is.Equal(call.Messages[0].ReqResp, sipmsg.MethodInvite)
	is.Equal(call.Messages[1].ReqResp, sipmsg.Method(200))
	is.Equal(call.Messages[2].ReqResp, sipmsg.MethodAck)
	is.Equal(call.Messages[3].ReqResp, sipmsg.MethodBye)
	is.Equal(call.State, StateCompleted)
}

func TestCheckPacketRejectsAtCapacityWithoutRotate(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 1, Rotate: false}, MatchOpts{}, SortOpts{})
	is.NoErr(err)

	_, err = reg.CheckPacket(testPacket("INVITE", "c1", ""))
	is.NoErr(err)
	_, err = reg.CheckPacket(testPacket("INVITE", "c2", ""))
	is.NoErr(err)

	is.Equal(reg.Stats().Total, 1)
	is.True(reg.FindByCallID("c2") == nil)
}

func TestCheckPacketRotatesWhenEnabled(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 1, Rotate: true}, MatchOpts{}, SortOpts{})
	is.NoErr(err)

	_, err = reg.CheckPacket(testPacket("INVITE", "c1", ""))
	is.NoErr(err)
	_, err = reg.CheckPacket(testPacket("INVITE", "c2", ""))
	is.NoErr(err)

	is.Equal(reg.Stats().Total, 1)
	is.True(reg.FindByCallID("c1") == nil)
	is.True(reg.FindByCallID("c2") != nil)
	is.Equal(testutil.ToFloat64(reg.Metrics().Rotated), float64(1))
}

func TestCheckPacketXCallIDResolvesEitherArrivalOrder(t *testing.T) {
	is := is.New(t)

	reg, err := New(CaptureOpts{Limit: 10}, MatchOpts{}, SortOpts{})
	is.NoErr(err)
	_, err = reg.CheckPacket(testPacket("INVITE", "parent", ""))
	is.NoErr(err)
	_, err = reg.CheckPacket(testPacket("INVITE", "child", "parent"))
	is.NoErr(err)

	child := reg.FindByCallID("child")
	parent := reg.FindByCallID("parent")
	is.True(child.ResolvedXCall() == parent)

	reg2, err := New(CaptureOpts{Limit: 10}, MatchOpts{}, SortOpts{})
	is.NoErr(err)
	_, err = reg2.CheckPacket(testPacket("INVITE", "child", "parent"))
	is.NoErr(err)
	_, err = reg2.CheckPacket(testPacket("INVITE", "parent", ""))
	is.NoErr(err)

	child2 := reg2.FindByCallID("child")
	parent2 := reg2.FindByCallID("parent")
	is.True(child2.ResolvedXCall() == parent2)
}

func TestRemoveLockedClearsDanglingXCallBackref(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 2, Rotate: true}, MatchOpts{}, SortOpts{})
	is.NoErr(err)

	_, err = reg.CheckPacket(testPacket("INVITE", "parent", ""))
	is.NoErr(err)
	_, err = reg.CheckPacket(testPacket("INVITE", "child", "parent"))
	is.NoErr(err)
	is.True(reg.FindByCallID("child").ResolvedXCall() != nil)

	// Force eviction of "parent" and "child" by admitting two more calls.
	_, err = reg.CheckPacket(testPacket("INVITE", "c3", ""))
	is.NoErr(err)
	is.True(reg.FindByCallID("child").ResolvedXCall() == nil) // parent evicted, backref cleared
	_, err = reg.CheckPacket(testPacket("INVITE", "c4", ""))
	is.NoErr(err)

	is.True(reg.FindByCallID("parent") == nil)
}

func TestByCallIDConsistentWithAll(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 100}, MatchOpts{}, SortOpts{})
	is.NoErr(err)

	for _, id := range []string{"a", "b", "c"} {
		_, err = reg.CheckPacket(testPacket("INVITE", id, ""))
		is.NoErr(err)
	}

	calls := reg.Calls()
	is.Equal(len(calls), 3)
	for _, call := range calls {
		is.True(reg.FindByCallID(call.CallID) == call)
	}
}

func TestLastIndexStrictlyIncreasing(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 100}, MatchOpts{}, SortOpts{})
	is.NoErr(err)

	for _, id := range []string{"a", "b", "c"} {
		_, err = reg.CheckPacket(testPacket("INVITE", id, ""))
		is.NoErr(err)
	}

	a := reg.FindByCallID("a")
	b := reg.FindByCallID("b")
	c := reg.FindByCallID("c")
	is.True(a.Index < b.Index)
	is.True(b.Index < c.Index)
}

func TestStatsTotalMatchesAll(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 100}, MatchOpts{}, SortOpts{})
	is.NoErr(err)

	for _, id := range []string{"a", "b"} {
		_, err = reg.CheckPacket(testPacket("INVITE", id, ""))
		is.NoErr(err)
	}
	is.Equal(reg.Stats().Total, 2)
}

func TestHasChangedClearsAtomically(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 100}, MatchOpts{}, SortOpts{})
	is.NoErr(err)

	is.True(!reg.HasChanged())

	_, err = reg.CheckPacket(testPacket("INVITE", "a", ""))
	is.NoErr(err)

	is.True(reg.HasChanged())
	is.True(!reg.HasChanged())
}

func TestCheckPacketDropsMissingCallID(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 10}, MatchOpts{}, SortOpts{})
	is.NoErr(err)

	pkt := Packet{Payload: []byte("INVITE sip:bob@biloxi.com SIP/2.0\r\nContent-Length: 0\r\n\r\n")}
	msg, err := reg.CheckPacket(pkt)
	is.NoErr(err)
	is.True(msg == nil)
	is.Equal(reg.Stats().Total, 0)
}

func TestSetMatchKeepsOldExpressionOnError(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 10}, MatchOpts{Expr: "alice"}, SortOpts{})
	is.NoErr(err)

	err = reg.SetMatch(MatchOpts{Expr: "("})
	is.True(err == ErrInvalidPattern)

	_, err = reg.CheckPacket(testPacket("INVITE", "c1", ""))
	is.NoErr(err)
	is.True(reg.FindByCallID("c1") != nil)
}

func TestClearRemovesEverything(t *testing.T) {
	is := is.New(t)
	reg, err := New(CaptureOpts{Limit: 10}, MatchOpts{}, SortOpts{})
	is.NoErr(err)
	_, err = reg.CheckPacket(testPacket("INVITE", "c1", ""))
	is.NoErr(err)

	reg.Clear()
	is.Equal(reg.Stats().Total, 0)
	is.True(reg.FindByCallID("c1") == nil)
}
