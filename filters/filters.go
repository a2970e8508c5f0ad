package filters

import (
	"github.com/sipwatch/sipwatch/callstore"
)

// FieldID names one of the closed set of filterable fields from §4.5.
type FieldID int

const (
	FieldFrom FieldID = iota
	FieldTo
	FieldSource
	FieldDestination
	FieldMethod
	FieldPayload
	FieldCallListLine

	fieldCount
)

func (f FieldID) valid() bool { return f >= FieldFrom && f < fieldCount }

// fieldData extracts the value a non-PAYLOAD field matches against, mirroring
// the switch in filter_check_call that calls call_get_attribute per filter
// type.
func fieldData(call *callstore.Call, field FieldID) string {
	switch field {
	case FieldFrom:
		return call.Attribute(callstore.AttrFrom)
	case FieldTo:
		return call.Attribute(callstore.AttrTo)
	case FieldSource:
		return call.Attribute(callstore.AttrSource)
	case FieldDestination:
		return call.Attribute(callstore.AttrDestination)
	case FieldMethod:
		return call.Attribute(callstore.AttrMethod)
	case FieldCallListLine:
		return callListLine(call)
	default:
		return ""
	}
}

// callListLine renders the one-line summary a call-list UI would show,
// grounded on the ngrep-style format sip_get_msg_header produces for a
// message, generalized to a whole call.
func callListLine(call *callstore.Call) string {
	return call.Attribute(callstore.AttrCallIndex) + " " +
		call.Attribute(callstore.AttrSIPFrom) + " -> " +
		call.Attribute(callstore.AttrSIPTo) + " " +
		call.Attribute(callstore.AttrMethod) + " " +
		call.Attribute(callstore.AttrState)
}
