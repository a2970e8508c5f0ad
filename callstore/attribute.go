package callstore

// AttributeID names a uniformly addressable field of a Call or Message,
// grounded on enum sip_attr_id: it is the single closed set that both the
// sort key and the filter engine's field selectors are drawn from.
type AttributeID int

const (
	AttrUnknown AttributeID = iota
	AttrCallIndex
	AttrCallID
	AttrXCallID
	AttrFrom
	AttrTo
	AttrSource
	AttrDestination
	AttrMethod
	AttrCSeq
	AttrDate
	AttrTime
	AttrSIPFrom
	AttrSIPTo
	AttrMsgCount
	AttrRTPCount
	AttrState
	AttrConvDuration
	AttrTotalDuration
	AttrReason
	AttrWarning
	AttrTransport
)
