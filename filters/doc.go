/*
Package filters implements the §4.5 field-selector filter engine: a closed
set of matchable fields, each independently configured with a regular
expression, a case-sensitivity flag, and an invert flag. A Call matches the
Engine if and only if it matches every field that currently has a filter
set (the empty Engine matches everything).

The recognized fields are:

	FieldFrom            the From header of the call's first message
	FieldTo              the To header of the call's first message
	FieldSource          the source endpoint of the call's first message
	FieldDestination     the destination endpoint of the call's first message
	FieldMethod           the method/response of the call's first message
	FieldPayload          every message's entire raw captured text (headers
	                      included, matching msg_get_payload), OR'd together
	FieldCallListLine     the rendered one-line call-list summary

FieldPayload is the one field that does not read from a single message: the
call matches if any one of its messages' payloads matches the pattern.

Each call's evaluation result is cached on the Call itself
(Call.FilterVerdict); Check only recomputes it when the cached verdict is
VerdictUnknown. Changing a filter with Set does not itself walk the call
set — callers invalidate the cache across the whole registry explicitly
with Registry.ResetFilterCache, matching filter_set leaving verdict
recomputation to the next filter_check_call pass.
*/
package filters
