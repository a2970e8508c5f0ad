package sipmsg

import (
	"testing"

	"github.com/matryer/is"
)

func TestValidateDatagramAlwaysComplete(t *testing.T) {
	is := is.New(t)
	result, consumed := Validate([]byte("INVITE sip:bob@biloxi.com SIP/2.0\r\nContent-Length: 0\r\n\r\n"), TransportUDP)
	is.Equal(result, Complete)
	is.True(consumed > 0)
}

func TestValidateStreamPartialHeaders(t *testing.T) {
	is := is.New(t)
	result, _ := Validate([]byte("INVITE sip:bob@biloxi.com SIP/2.0\r\nContent-Length: 0\r\n"), TransportTCP)
	is.Equal(result, Partial)
}

func TestValidateStreamPartialBody(t *testing.T) {
	is := is.New(t)
	result, _ := Validate([]byte("INVITE sip:bob@biloxi.com SIP/2.0\r\nContent-Length: 10\r\n\r\nshort"), TransportTCP)
	is.Equal(result, Partial)
}

func TestValidateStreamComplete(t *testing.T) {
	is := is.New(t)
	payload := "INVITE sip:bob@biloxi.com SIP/2.0\r\nContent-Length: 5\r\n\r\nhello"
	result, consumed := Validate([]byte(payload), TransportTCP)
	is.Equal(result, Complete)
	is.Equal(consumed, len(payload))
}

func TestValidateStreamMultiple(t *testing.T) {
	is := is.New(t)
	first := "INVITE sip:bob@biloxi.com SIP/2.0\r\nContent-Length: 0\r\n\r\n"
	second := "BYE sip:bob@biloxi.com SIP/2.0\r\nContent-Length: 0\r\n\r\n"
	result, consumed := Validate([]byte(first+second), TransportTCP)
	is.Equal(result, Multiple)
	is.Equal(consumed, len(first))
}

func TestValidateNotSIP(t *testing.T) {
	is := is.New(t)
	result, _ := Validate([]byte("not a sip message"), TransportUDP)
	is.Equal(result, NotSIP)
}
