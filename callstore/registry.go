package callstore

import (
	"sort"
	"sync"
	"time"

	"github.com/sipwatch/sipwatch/sipmsg"
)

// Stats reports the registry's total and currently-displayed call counts,
// matching sip_stats_t.
type Stats struct {
	Total     int
	Displayed int
}

// Registry owns every Call. It is the Go rendering of the process-wide
// `calls` global in sip.c, re-architected per the §9 design note as an
// explicit instance threaded into every entry point rather than a
// singleton. A single RWMutex implements the single-writer/many-readers
// model from §5: CheckPacket, the Clear/ClearSoft/SetMatch/SetSort mutators,
// ActiveIdlePurge, ResetFilterCache and HasChanged (which clears the change
// flag) take the write lock; the lookups and views take a read lock.
type Registry struct {
	mu sync.RWMutex

	capture CaptureOpts
	match   MatchOpts
	sortBy  SortOpts

	byCallID  map[string]*Call
	all       []*Call
	active    []*Call
	lastIndex uint64
	changed   bool

	metrics *Metrics
}

// New builds a Registry, matching sip_init. It fails with ErrInvalidPattern
// if match.Expr does not compile; no other part of the configuration is
// committed in that case.
func New(capture CaptureOpts, match MatchOpts, sortOpts SortOpts) (*Registry, error) {
	compiled, err := compileMatch(match)
	if err != nil {
		return nil, err
	}
	if capture.ActiveIdleTimeout == 0 {
		capture.ActiveIdleTimeout = DefaultActiveIdleTimeout
	}
	return &Registry{
		capture:  capture,
		match:    compiled,
		sortBy:   sortOpts,
		byCallID: make(map[string]*Call),
		metrics:  NewMetrics(),
	}, nil
}

// Metrics exposes r's Prometheus collectors for registration.
func (r *Registry) Metrics() *Metrics { return r.metrics }

// CheckPacket is the admission and linking pipeline, matching
// sip_check_packet. It returns the accepted Message, or nil if the packet
// was dropped for any reason in the taxonomy described in §7 (empty
// Call-ID, admission policy, or capacity with rotation disabled).
func (r *Registry) CheckPacket(pkt Packet) (*sipmsg.Message, error) {
	callID := sipmsg.GetCallID(pkt.Payload)
	if callID == "" {
		r.metrics.Dropped.Inc()
		return nil, nil
	}

	msg := sipmsg.NewMessage(pkt.Payload, pkt.Timestamp, pkt.Source, pkt.Destination, pkt.Transport)
	msg.CallID = callID
	msg.Parse()

	r.mu.Lock()
	defer r.mu.Unlock()

	call, existing := r.byCallID[callID]
	newcall := false
	if !existing {
		if !r.admit(msg) {
			r.metrics.Dropped.Inc()
			return nil, nil
		}
		if uint32(len(r.all)) >= r.capture.Limit && r.capture.Limit > 0 {
			if !r.capture.Rotate {
				r.metrics.Dropped.Inc()
				return nil, nil
			}
			r.rotateLocked()
		}
		r.lastIndex++
		call = newCall(callID, msg.XCallID, r.lastIndex)
		r.byCallID[callID] = call
		newcall = true
	}

	call.addMessage(msg)
	call.retransCheck(msg)

	if newcall && call.XCallID != "" {
		if parent, ok := r.byCallID[call.XCallID]; ok {
			parent.addXCall(call)
		}
	}
	// A late-arriving call may itself be the unresolved parent of an
	// earlier child; resolve any children whose literal XCallID names it.
	if newcall {
		for _, other := range r.all {
			if other.xcall == nil && other.XCallID == call.CallID {
				call.addXCall(other)
			}
		}
	}

	if call.IsInvite() {
		for _, media := range msg.Medias {
			call.addMedia(msg.Source, media, msg.Arrival)
		}
		call.updateState(msg)
		call.Reason = firstNonEmpty(call.Reason, msg.Reason)
		if msg.Warning != 0 {
			call.Warning = msg.Warning
		}
		r.syncActiveLocked(call)
	}

	if newcall {
		r.all = append(r.all, call)
	}
	r.changed = true
	r.metrics.Accepted.Inc()
	r.metrics.Calls.Set(float64(len(r.all)))
	r.metrics.Active.Set(float64(len(r.active)))

	return msg, nil
}

func firstNonEmpty(cur, next string) string {
	if next != "" {
		return next
	}
	return cur
}

// admit applies the new-call admission policy from §4.4 step 3.
func (r *Registry) admit(msg *sipmsg.Message) bool {
	if r.match.Invite && msg.ReqResp != sipmsg.MethodInvite {
		return false
	}
	if r.match.Complete && msg.HasToTag() {
		return false
	}
	if !r.match.matches(msg.Raw) {
		return false
	}
	return true
}

// syncActiveLocked adds or removes call from the active list depending on
// whether it is currently in a non-terminal dialog state, matching the
// "check if this call should be in active call list" step of
// sip_check_packet. Idleness is not checked here; ActiveIdlePurge removes
// idle calls.
func (r *Registry) syncActiveLocked(call *Call) {
	shouldBeActive := !call.State.terminal()
	idx := indexOfCall(r.active, call)
	if shouldBeActive {
		if idx == -1 {
			r.active = append(r.active, call)
		}
	} else if idx != -1 {
		r.active = append(r.active[:idx], r.active[idx+1:]...)
	}
}

func indexOfCall(calls []*Call, target *Call) int {
	for i, c := range calls {
		if c == target {
			return i
		}
	}
	return -1
}

// rotateLocked evicts the oldest non-locked call, matching sip_calls_rotate.
func (r *Registry) rotateLocked() {
	for i, call := range r.all {
		if call.Locked {
			continue
		}
		r.removeLocked(i)
		r.metrics.Rotated.Inc()
		return
	}
}

func (r *Registry) removeLocked(i int) {
	call := r.all[i]
	delete(r.byCallID, call.CallID)
	r.all = append(r.all[:i], r.all[i+1:]...)
	if idx := indexOfCall(r.active, call); idx != -1 {
		r.active = append(r.active[:idx], r.active[idx+1:]...)
	}
	for _, other := range r.all {
		if other.xcall == call {
			other.xcall = nil
		}
	}
	r.changed = true
}

// ActiveIdlePurge drops calls from the active list that have not seen
// activity within CaptureOpts.ActiveIdleTimeout, raising the change flag if
// any call was dropped. It takes the write lock and is meant to be called
// periodically by the consumer; CheckPacket itself never blocks on a timer,
// keeping every registry call bounded per §5.
func (r *Registry) ActiveIdlePurge(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.active[:0:0]
	for _, call := range r.active {
		if now.Sub(call.lastActivity) <= r.capture.ActiveIdleTimeout {
			kept = append(kept, call)
		}
	}
	if len(kept) != len(r.active) {
		r.changed = true
	}
	r.active = kept
}

// FindByIndex matches sip_find_by_index, returning the call at position i in
// the current sort order, or nil if out of range.
func (r *Registry) FindByIndex(i int) *Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view := r.sortedViewLocked()
	if i < 0 || i >= len(view) {
		return nil
	}
	return view[i]
}

// FindByCallID matches sip_find_by_callid.
func (r *Registry) FindByCallID(callID string) *Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byCallID[callID]
}

// Calls returns the current sorted view of all calls, matching
// sip_calls_iterator/sip_calls_vector.
func (r *Registry) Calls() []*Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedViewLocked()
}

// ActiveCalls returns the active subset, sorted the same way, matching
// sip_active_calls_iterator/sip_active_calls_vector.
func (r *Registry) ActiveCalls() []*Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view := make([]*Call, len(r.active))
	copy(view, r.active)
	sortCalls(view, r.sortBy)
	return view
}

func (r *Registry) sortedViewLocked() []*Call {
	view := make([]*Call, len(r.all))
	copy(view, r.all)
	sortCalls(view, r.sortBy)
	return view
}

// SetSort changes the displayed sort key, matching sip_set_sort_options.
func (r *Registry) SetSort(opts SortOpts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sortBy = opts
}

// SortOptions matches sip_sort_options.
func (r *Registry) SortOptions() SortOpts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortBy
}

// SetMatch recompiles the admission match expression, matching filter_set's
// compile-before-commit contract: on error the previous expression is kept.
func (r *Registry) SetMatch(opts MatchOpts) error {
	compiled, err := compileMatch(opts)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.match = compiled
	return nil
}

// Stats matches sip_calls_stats: total is the unfiltered count, displayed
// counts calls whose cached filter verdict is Pass (Unknown calls are
// skipped rather than evaluated here, matching §4.7's "may be computed on
// demand" latitude).
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := Stats{Total: len(r.all)}
	for _, call := range r.all {
		if call.filtered == VerdictPass {
			stats.Displayed++
		}
	}
	return stats
}

// HasChanged matches sip_calls_has_changed: it reads and clears the flag
// atomically under the write lock.
func (r *Registry) HasChanged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := r.changed
	r.changed = false
	return changed
}

// Clear removes every call, matching sip_calls_clear.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCallID = make(map[string]*Call)
	r.all = nil
	r.active = nil
	r.changed = true
}

// ClearSoft keeps only calls for which keep returns true, matching
// sip_calls_clear_soft's re-filter-and-repopulate behavior.
func (r *Registry) ClearSoft(keep func(*Call) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	filteredAll := r.all[:0:0]
	filteredActive := r.active[:0:0]
	byCallID := make(map[string]*Call, len(r.byCallID))
	for _, call := range r.all {
		if keep(call) {
			filteredAll = append(filteredAll, call)
			byCallID[call.CallID] = call
		}
	}
	for _, call := range r.active {
		if keep(call) {
			filteredActive = append(filteredActive, call)
		}
	}
	r.all, r.active, r.byCallID = filteredAll, filteredActive, byCallID
	r.changed = true
}

// ResetFilterCache forces every call's cached verdict back to Unknown,
// matching filter_reset_calls. The filters package does not call it itself:
// callers invoke it after changing a filter expression on a filters.Engine.
func (r *Registry) ResetFilterCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, call := range r.all {
		call.filtered = VerdictUnknown
	}
}

// Close matches sip_deinit: it discards every call. The Registry is not
// usable afterward.
func (r *Registry) Close() {
	r.Clear()
}

// sortCalls stable-sorts calls by opts.By, tie-breaking on creation index,
// matching sip_list_sorter.
func sortCalls(calls []*Call, opts SortOpts) {
	sort.SliceStable(calls, func(i, j int) bool {
		cmp := compareAttribute(calls[i], calls[j], opts.By)
		if cmp == 0 {
			cmp = compareUint64(calls[i].Index, calls[j].Index)
		}
		if opts.Asc {
			return cmp < 0
		}
		return cmp > 0
	})
}
