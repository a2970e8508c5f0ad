package callstore

import (
	"regexp"
	"time"
)

// CaptureOpts controls admission capacity and rotation, matching
// _SStorageCaptureOpts in sip.h. ActiveIdleTimeout is this implementation's
// resolution of the open "active membership" question in §9: a call that has
// received no new message for longer than this is dropped from the active
// list by Registry.ActiveIdlePurge, even if its dialog never reached a
// terminal state.
type CaptureOpts struct {
	Limit             uint32
	Rotate            bool
	RTP               bool
	OutFile           string
	ActiveIdleTimeout time.Duration
}

// DefaultActiveIdleTimeout is used when CaptureOpts.ActiveIdleTimeout is
// zero.
const DefaultActiveIdleTimeout = 30 * time.Second

// MatchOpts controls new-call admission, matching _SStorageMatchOpts.
type MatchOpts struct {
	Invite   bool
	Complete bool
	Expr     string
	Invert   bool
	IgnoreCase bool

	regex *regexp.Regexp
}

// SortOpts selects the displayed sort key, matching _SStorageSortOpts.
type SortOpts struct {
	By  AttributeID
	Asc bool
}

func compileMatch(opts MatchOpts) (MatchOpts, error) {
	if opts.Expr == "" {
		return opts, nil
	}
	pattern := opts.Expr
	if opts.IgnoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return opts, ErrInvalidPattern
	}
	opts.regex = re
	return opts, nil
}

// matches reports whether payload satisfies the match expression, matching
// sip_check_match_expression (no expression means everything matches).
func (m MatchOpts) matches(payload []byte) bool {
	if m.regex == nil {
		return true
	}
	matched := m.regex.Match(payload)
	if m.Invert {
		return !matched
	}
	return matched
}
