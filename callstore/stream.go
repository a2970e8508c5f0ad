package callstore

import (
	"time"

	"github.com/sipwatch/sipwatch/sipmsg"
)

// RTPStream is one negotiated media stream belonging to a call, grounded on
// sdp_media_t/rtp_stream handling in media.c, generalized from a single
// address+format pair to the first-seen/last-seen/packet-count record the
// spec's Data Model requires.
type RTPStream struct {
	Source, Destination sipmsg.Endpoint
	Formats              []string
	FirstSeen, LastSeen  time.Time
	PacketCount          int
}

func (s *RTPStream) key() string {
	return s.Destination.String() + "|" + formatKey(s.Formats)
}

func formatKey(formats []string) string {
	var key string
	for i, f := range formats {
		if i > 0 {
			key += ","
		}
		key += f
	}
	return key
}

// addMedia folds a parsed MediaDescriptor into a call's stream sequence: a
// descriptor with the same endpoint and formats as an existing stream
// refreshes that stream's last-seen time instead of duplicating it, matching
// the coalescing rule in §4.3.
func (c *Call) addMedia(src sipmsg.Endpoint, d sipmsg.MediaDescriptor, seen time.Time) {
	candidate := &RTPStream{
		Source:      src,
		Destination: d.Endpoint,
		Formats:     d.Formats,
	}
	for _, existing := range c.Streams {
		if existing.key() == candidate.key() {
			existing.LastSeen = seen
			existing.PacketCount++
			return
		}
	}
	candidate.FirstSeen = seen
	candidate.LastSeen = seen
	candidate.PacketCount = 1
	c.addStream(candidate)
}
