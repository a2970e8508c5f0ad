package sipmsg

import "testing"

import "github.com/matryer/is"

func TestMethodStringRoundTrip(t *testing.T) {
	is := is.New(t)
	for _, m := range []Method{
		MethodRegister, MethodInvite, MethodSubscribe, MethodNotify,
		MethodOptions, MethodPublish, MethodMessage, MethodCancel,
		MethodBye, MethodAck, MethodPrack, MethodInfo, MethodRefer, MethodUpdate,
	} {
		is.Equal(ParseMethod(m.String()), m)
	}
}

func TestMethodIsRequest(t *testing.T) {
	is := is.New(t)
	is.True(MethodInvite.IsRequest())
	is.True(MethodUpdate.IsRequest())
	is.True(!Method(200).IsRequest())
	is.True(!MethodUnknown.IsRequest())
}

func TestParseMethodFallsBackToStatusCode(t *testing.T) {
	is := is.New(t)
	is.Equal(ParseMethod("200"), Method(200))
	is.Equal(ParseMethod("garbage"), MethodUnknown)
}

func TestMethodStringForResponseCode(t *testing.T) {
	is := is.New(t)
	is.Equal(Method(404).String(), "404")
}
