package callstore

import (
	"time"

	"github.com/sipwatch/sipwatch/sipmsg"
)

// Packet is what the capture frontend hands the registry: an already
// assembled, already-validated payload plus its transport metadata. This is
// the boundary named in §6 ("packet {source, destination, transport,
// timestamp, payload-bytes}").
type Packet struct {
	Source      sipmsg.Endpoint
	Destination sipmsg.Endpoint
	Transport   sipmsg.Transport
	Timestamp   time.Time
	Payload     []byte
}
