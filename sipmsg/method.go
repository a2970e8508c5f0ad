package sipmsg

import "strconv"

// Method identifies a SIP request method or a response status code. Request
// methods use the fixed enumeration below; responses store their numeric
// status code directly, which is always greater than the largest enumerated
// method (mirrors sip_method_from_str's fallback to atoi in sip.c).
type Method int

const (
	// MethodUnknown marks a method/response that could not be decoded.
	MethodUnknown Method = 0
	MethodRegister Method = iota
	MethodInvite
	MethodSubscribe
	MethodNotify
	MethodOptions
	MethodPublish
	MethodMessage
	MethodCancel
	MethodBye
	MethodAck
	MethodPrack
	MethodInfo
	MethodRefer
	MethodUpdate
)

// methodNames is ordered so that String/ParseMethod round-trip for every
// enumerated value; see sip_codes in sip.c.
var methodNames = []struct {
	method Method
	name   string
}{
	{MethodRegister, "REGISTER"},
	{MethodInvite, "INVITE"},
	{MethodSubscribe, "SUBSCRIBE"},
	{MethodNotify, "NOTIFY"},
	{MethodOptions, "OPTIONS"},
	{MethodPublish, "PUBLISH"},
	{MethodMessage, "MESSAGE"},
	{MethodCancel, "CANCEL"},
	{MethodBye, "BYE"},
	{MethodAck, "ACK"},
	{MethodPrack, "PRACK"},
	{MethodInfo, "INFO"},
	{MethodRefer, "REFER"},
	{MethodUpdate, "UPDATE"},
}

// String returns the canonical method text, or the decimal response code if
// m is not one of the enumerated request methods.
func (m Method) String() string {
	for _, e := range methodNames {
		if e.method == m {
			return e.name
		}
	}
	if m > 0 {
		return strconv.Itoa(int(m))
	}
	return ""
}

// IsRequest reports whether m names one of the enumerated request methods,
// as opposed to a numeric response status code.
func (m Method) IsRequest() bool {
	return m > 0 && int(m) <= len(methodNames)
}

// ParseMethod converts a request method name or a response status code
// string into its numeric representation. Unknown method text falls back to
// parsing it as an integer status code, matching sip_method_from_str.
func ParseMethod(s string) Method {
	for _, e := range methodNames {
		if e.name == s {
			return e.method
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Method(n)
	}
	return MethodUnknown
}
