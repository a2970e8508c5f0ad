package filters

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/sipwatch/sipwatch/callstore"
)

// rule is one compiled field filter: a pattern plus the case/invert flags it
// was set with, matching the (field-selector, compiled-pattern, case-flag,
// invert-flag) tuple from §4.5.
type rule struct {
	expr          string
	caseSensitive bool
	invert        bool
	regex         *regexp.Regexp
}

func (r rule) matches(data string) bool {
	matched := r.regex.MatchString(data)
	if r.invert {
		return !matched
	}
	return matched
}

// Engine holds the currently configured filters, one per FieldID, and
// evaluates them against Calls. Its zero value has no filters set and
// matches every call, equivalent to an empty sexp source in the teacher's
// DSL.
type Engine struct {
	mu    sync.RWMutex
	rules [fieldCount]*rule
}

// Set compiles expr for field and installs it, matching filter_set:
// compilation happens before anything is changed, so a bad pattern leaves
// the previous filter (if any) untouched. Passing an empty expr clears the
// field's filter. Changing a filter invalidates every call's cached
// verdict only once the caller also invokes Registry.ResetFilterCache;
// Set itself does not know about the registry.
func (e *Engine) Set(field FieldID, expr string, caseSensitive, invert bool) error {
	if !field.valid() {
		return ErrUnknownField
	}
	if expr == "" {
		e.mu.Lock()
		e.rules[field] = nil
		e.mu.Unlock()
		return nil
	}

	pattern := expr
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compiling filter for field %d: %w", field, ErrBadRegexp)
	}

	e.mu.Lock()
	e.rules[field] = &rule{expr: expr, caseSensitive: caseSensitive, invert: invert, regex: re}
	e.mu.Unlock()
	return nil
}

// Get returns the expression currently set for field, and whether one is
// set at all, matching filter_get.
func (e *Engine) Get(field FieldID) (string, bool) {
	if !field.valid() {
		return "", false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := e.rules[field]
	if r == nil {
		return "", false
	}
	return r.expr, true
}

// Check evaluates call against every configured filter, matching
// filter_check_call including its per-call verdict cache: a call with a
// cached verdict other than Unknown returns that verdict directly without
// re-running any regexp.
func (e *Engine) Check(call *callstore.Call) bool {
	if call.MsgCount() == 0 {
		return false
	}
	if v := call.FilterVerdict(); v != callstore.VerdictUnknown {
		return v == callstore.VerdictPass
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for field := FieldFrom; field < fieldCount; field++ {
		r := e.rules[field]
		if r == nil {
			continue
		}
		if field == FieldPayload {
			if !e.matchesAnyPayload(call, r) {
				call.SetFilterVerdict(callstore.VerdictReject)
				return false
			}
			continue
		}
		if !r.matches(fieldData(call, field)) {
			call.SetFilterVerdict(callstore.VerdictReject)
			return false
		}
	}

	call.SetFilterVerdict(callstore.VerdictPass)
	return true
}

// matchesAnyPayload implements the PAYLOAD field's OR-over-messages rule
// from §4.5: the call matches if any single message's payload matches,
// where "payload" matches msg_get_payload's meaning in sip_msg.c, the
// entire raw captured message, headers included, not just the body after
// the blank-line delimiter.
func (e *Engine) matchesAnyPayload(call *callstore.Call, r *rule) bool {
	for _, msg := range call.Messages {
		if r.matches(string(msg.Raw)) {
			return true
		}
	}
	return false
}
