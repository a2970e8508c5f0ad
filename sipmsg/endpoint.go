package sipmsg

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Transport identifies the wire transport a Message arrived on, mirroring
// PACKET_SIP_UDP/TCP/TLS/WS in the original sip.h.
type Transport int

const (
	TransportUnknown Transport = iota
	TransportUDP
	TransportTCP
	TransportTLS
	TransportWS
	TransportWSS
)

// String renders the transport the way sip_transport_str does.
func (t Transport) String() string {
	switch t {
	case TransportUDP:
		return "UDP"
	case TransportTCP:
		return "TCP"
	case TransportTLS:
		return "TLS"
	case TransportWS:
		return "WS"
	case TransportWSS:
		return "WSS"
	default:
		return ""
	}
}

// IsDatagram reports whether the transport delivers whole messages as
// individual datagrams (§4.1 payload validator treats these as always
// complete once the start line matches), as opposed to a byte stream that
// must be framed with Content-Length.
func (t Transport) IsDatagram() bool {
	return t == TransportUDP
}

// Endpoint identifies one side of a captured packet. The network address is
// carried as a gopacket.Endpoint (as used throughout the capture frontend's
// flow tracking) paired with the transport-layer port, since gopacket keeps
// those as separate flow layers.
type Endpoint struct {
	Addr gopacket.Endpoint
	Port uint16
}

// NewEndpoint builds an Endpoint from a net.IP and port.
func NewEndpoint(ip net.IP, port uint16) Endpoint {
	return Endpoint{Addr: layers.NewIPEndpoint(ip), Port: port}
}

// String renders "ip:port", matching msg_get_attribute's SIP_ATTR_SRC/DST
// formatting in sip_msg.c.
func (e Endpoint) String() string {
	if e.Addr == gopacket.InvalidEndpoint {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.Addr, e.Port)
}

// Equal reports whether two endpoints name the same address and port,
// mirroring addressport_equals in glib-utils.c.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.Port == o.Port && e.Addr == o.Addr
}
