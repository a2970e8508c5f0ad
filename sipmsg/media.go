package sipmsg

import (
	"fmt"
	"net"

	"github.com/pion/sdp/v3"
)

// MediaDescriptor is one "m=" line of an SDP body, identifying a single RTP
// stream endpoint and the formats offered for it. Grounded on sdp_media_t in
// media.c, rebuilt on top of github.com/pion/sdp/v3 instead of a hand-rolled
// SDP scanner.
type MediaDescriptor struct {
	Type     string // "audio", "video", ...
	Endpoint Endpoint
	Formats  []string
}

// Key identifies a MediaDescriptor for stream coalescing purposes: streams
// with the same endpoint and format set are the same RTP stream observed
// again, per §4.3.
func (d MediaDescriptor) Key() string {
	return fmt.Sprintf("%s|%v", d.Endpoint, d.Formats)
}

// ParseMedia scans a SIP message body for SDP media descriptions, emitting
// one MediaDescriptor per "m=" line. It mirrors sip_parse_msg_media's
// traversal of media_create/media_set_address/media_add_format in media.c,
// using the session-level connection address as the fallback when a media
// block has none of its own.
func ParseMedia(body []byte) ([]MediaDescriptor, error) {
	var sess sdp.SessionDescription
	if err := sess.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("parsing sdp body: %w", err)
	}

	sessionAddr := connectionAddr(sess.ConnectionInformation)

	descriptors := make([]MediaDescriptor, 0, len(sess.MediaDescriptions))
	for _, md := range sess.MediaDescriptions {
		addr := connectionAddr(md.ConnectionInformation)
		if addr == nil {
			addr = sessionAddr
		}
		if addr == nil {
			continue
		}
		port := uint16(md.MediaName.Port.Value)
		descriptors = append(descriptors, MediaDescriptor{
			Type:     md.MediaName.Media,
			Endpoint: NewEndpoint(addr, port),
			Formats:  append([]string(nil), md.MediaName.Formats...),
		})
	}
	return descriptors, nil
}

func connectionAddr(ci *sdp.ConnectionInformation) net.IP {
	if ci == nil || ci.Address == nil {
		return nil
	}
	return net.ParseIP(ci.Address.Address)
}
