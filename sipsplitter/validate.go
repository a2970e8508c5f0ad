package sipsplitter

import "bytes"

// Result is the outcome of classifying a single payload against the SIP
// framing rules, matching enum validate_result in sip.h.
type Result int

const (
	NotSIP Result = iota
	Partial
	Complete
	Multiple
)

// Classify implements the §4.1 Payload Validator: it decides whether a
// single delivered payload is not SIP at all, an incomplete SIP message,
// exactly one complete SIP message, or more than one. datagram selects the
// datagram-transport rule (complete as soon as the start line matches, no
// Content-Length enforcement) versus the stream-transport rule (a
// Content-Length header is mandatory and must account for every trailing
// byte). consumed is the byte length of the first complete message; it is
// only meaningful when the result is Complete or Multiple, matching
// sip_validate_packet's handling of VALIDATE_MULTIPLE_SIP.
func Classify(payload []byte, datagram bool) (result Result, consumed int) {
	start, endstart := findStartLine(payload)
	if start > 0 {
		// Leading junk before a recognizable start line; validators don't
		// resynchronize on behalf of the caller, they simply reject.
		return NotSIP, 0
	}
	if start < 0 {
		return NotSIP, 0
	}

	if datagram {
		// A datagram's boundary is already the message boundary; trust it.
		return Complete, len(payload)
	}

	headerEnd := bytes.Index(payload, crlfcrlf)
	if headerEnd == -1 {
		return Partial, 0
	}
	headerEnd += len(crlfcrlf)

	contentLen := getContentLength(payload[:headerEnd])
	if contentLen == -1 {
		return Partial, 0
	}

	bodyLen := len(payload) - headerEnd
	switch {
	case bodyLen < contentLen:
		return Partial, 0
	case bodyLen > contentLen:
		return Multiple, headerEnd + contentLen
	default:
		_ = endstart
		return Complete, len(payload)
	}
}
