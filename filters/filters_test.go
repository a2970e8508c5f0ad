package filters

import (
	"testing"

	"github.com/matryer/is"

	"github.com/sipwatch/sipwatch/testhelpers"
)

func TestCallListLineMatchesGolden(t *testing.T) {
	is := is.New(t)
	reg := newTestRegistry(t)

	_, err := reg.CheckPacket(packet("INVITE sip:bob@biloxi.com SIP/2.0\r\n" +
		"From: <sip:alice@atlanta.com>\r\n" +
		"To: <sip:bob@biloxi.com>\r\n" +
		"Call-ID: goldencall\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"Content-Length: 0\r\n\r\n"))
	is.NoErr(err)

	call := reg.FindByCallID("goldencall")
	is.True(call != nil)

	actual := callListLine(call)
	testhelpers.CompareGolden(t, "call list line", "call_list_line.golden", []byte(actual))
}
