package sipmsg

import (
	"regexp"
	"strconv"
)

// Compiled once at package init, mirroring the calls.reg_* fields compiled
// in sip_init (sip.c). Go's regexp has no (?P<name>...) lookup by name in
// the stdlib API other than SubexpIndex, used below.
// Line-terminal captures use [^\r\n]+ rather than a trailing $: RE2's
// multiline $ matches only immediately before \n, so against CRLF input a
// pattern like ".+$" would greedily swallow the trailing \r into the capture
// instead of stopping before it.
var (
	reStartLine = regexp.MustCompile(`(?m)^(\w+) [^:]+:\S* SIP/2.0`)
	reResponse  = regexp.MustCompile(`SIP/2.0 (?P<code>\d{3}) (?P<text>[^\r\n]*)`)
	reCallID    = regexp.MustCompile(`(?im)^(Call-ID|i):\s*(?P<callid>[^\r\n]+)`)
	reXCallID   = regexp.MustCompile(`(?im)^(X-Call-ID|X-CID):\s*(?P<xcallid>[^\r\n]+)`)
	reCSeq      = regexp.MustCompile(`(?im)^CSeq:\s*(?P<cseq>\d+)\s+[^\r\n]+`)
	reFrom      = regexp.MustCompile(`(?im)^(From|f):[^:]+:(?P<from>(?P<fromuser>[^@;>\r]+@)?[^;>\r]+)`)
	reTo        = regexp.MustCompile(`(?im)^(To|t):[^:]+:(?P<to>(?P<touser>[^@;>\r]+@)?[^;>\r]+)>?(?P<tag>;tag=)?`)
	reBody      = regexp.MustCompile(`(?s)\r\n\r\n(.*)`)
	reReason    = regexp.MustCompile(`Reason:[ ]*[^\r]*;text="([^\r]+)"`)
	reWarning   = regexp.MustCompile(`(?im)^Warning:\s*(?P<warning>\d+)`)
)

// GetCallID is the cheap extraction path used before committing to a full
// Parse: it scans only for the Call-ID header, matching sip_get_callid.
func GetCallID(payload []byte) string {
	m := reCallID.FindSubmatch(payload)
	if m == nil {
		return ""
	}
	return string(m[reCallID.SubexpIndex("callid")])
}

// GetXCallID is the equivalent cheap extraction for X-Call-ID/X-CID,
// matching sip_get_xcallid.
func GetXCallID(payload []byte) string {
	m := reXCallID.FindSubmatch(payload)
	if m == nil {
		return ""
	}
	return string(m[reXCallID.SubexpIndex("xcallid")])
}

// bodyOf returns the bytes after the header/body CRLFCRLF delimiter, or nil
// if there is no delimiter.
func bodyOf(payload []byte) []byte {
	loc := reBody.FindSubmatchIndex(payload)
	if loc == nil {
		return nil
	}
	return payload[loc[2]:loc[3]]
}

// defaultReasons holds the standard reason phrase of the common response
// codes; GetReqResp reports a response's reason text only when it differs.
var defaultReasons = map[Method]string{
	100: "Trying", 180: "Ringing", 181: "Call Is Being Forwarded", 182: "Queued",
	183: "Session Progress", 200: "OK", 202: "Accepted", 300: "Multiple Choices",
	301: "Moved Permanently", 302: "Moved Temporarily", 380: "Alternative Service",
	400: "Bad Request", 401: "Unauthorized", 403: "Forbidden", 404: "Not Found",
	405: "Method Not Allowed", 407: "Proxy Authentication Required", 408: "Request Timeout",
	480: "Temporarily Unavailable", 481: "Call/Transaction Does Not Exist", 486: "Busy Here",
	487: "Request Terminated", 488: "Not Acceptable Here", 500: "Server Internal Error",
	503: "Service Unavailable", 600: "Busy Everywhere", 603: "Decline",
}

// GetReqResp decodes the request method or response status code from the
// start line, matching sip_get_msg_reqresp. It returns MethodUnknown if
// neither pattern matches.
func GetReqResp(payload []byte) (method Method, respText string) {
	if m := reResponse.FindSubmatch(payload); m != nil {
		code, _ := strconv.Atoi(string(namedGroupBytes(reResponse, m, "code")))
		text := string(namedGroupBytes(reResponse, m, "text"))
		rr := Method(code)
		if def := defaultReasons[rr]; def != text {
			return rr, text
		}
		return rr, ""
	}
	if m := reStartLine.FindSubmatch(payload); m != nil {
		return ParseMethod(string(m[1])), ""
	}
	return MethodUnknown, ""
}

func namedGroupBytes(re *regexp.Regexp, m [][]byte, name string) []byte {
	i := re.SubexpIndex(name)
	if i < 0 || i >= len(m) {
		return nil
	}
	return m[i]
}

// parsePayload fills m's structured fields from payload, matching
// sip_parse_msg_payload.
func parsePayload(m *Message, payload []byte) {
	m.ReqResp, m.RespText = GetReqResp(payload)
	m.CallID = GetCallID(payload)
	m.XCallID = GetXCallID(payload)

	if sm := reFrom.FindSubmatch(payload); sm != nil {
		m.From = string(namedGroupBytes(reFrom, sm, "from"))
		m.FromUser = string(namedGroupBytes(reFrom, sm, "fromuser"))
	}
	if sm := reTo.FindSubmatch(payload); sm != nil {
		m.To = string(namedGroupBytes(reTo, sm, "to"))
		m.ToUser = string(namedGroupBytes(reTo, sm, "touser"))
		m.ToTag = len(namedGroupBytes(reTo, sm, "tag")) > 0
	}
	if sm := reCSeq.FindSubmatch(payload); sm != nil {
		m.CSeq, _ = strconv.Atoi(string(namedGroupBytes(reCSeq, sm, "cseq")))
	}
	if sm := reReason.FindSubmatch(payload); sm != nil {
		m.Reason = string(sm[1])
	}
	if sm := reWarning.FindSubmatch(payload); sm != nil {
		m.Warning, _ = strconv.Atoi(string(namedGroupBytes(reWarning, sm, "warning")))
	}

	if body := bodyOf(payload); len(body) > 0 {
		if medias, err := ParseMedia(body); err == nil {
			m.Medias = medias
		}
	}
}

// HasToTag reports whether the message's To header carries a tag parameter,
// which sip_check_packet uses to recognize dialogs already in progress when
// capture started (the "complete" admission policy in §4.4).
func (m *Message) HasToTag() bool { return m.ToTag }
