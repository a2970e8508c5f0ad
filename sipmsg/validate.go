package sipmsg

import "github.com/sipwatch/sipwatch/sipsplitter"

// ValidateResult mirrors validate_result in sip.h: whether a delivered
// payload is usable as a SIP message at all.
type ValidateResult int

const (
	NotSIP   ValidateResult = ValidateResult(sipsplitter.NotSIP)
	Partial  ValidateResult = ValidateResult(sipsplitter.Partial)
	Complete ValidateResult = ValidateResult(sipsplitter.Complete)
	Multiple ValidateResult = ValidateResult(sipsplitter.Multiple)
)

// Validate classifies a single captured payload per §4.1, delegating the
// line-scanning and Content-Length accounting to sipsplitter, which already
// implements it for the streaming case. consumed is the length of the first
// complete message within payload; callers only need it when the result is
// Multiple, to know where the next message starts.
func Validate(payload []byte, transport Transport) (result ValidateResult, consumed int) {
	r, n := sipsplitter.Classify(payload, transport.IsDatagram())
	return ValidateResult(r), n
}
