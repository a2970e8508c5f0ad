package sipmsg

import (
	"testing"

	"github.com/matryer/is"
)

const sdpBody = "v=0\r\n" +
	"o=alice 2890844526 2890844526 IN IP4 atlanta.com\r\n" +
	"s=-\r\n" +
	"c=IN IP4 192.0.2.101\r\n" +
	"t=0 0\r\n" +
	"m=audio 49170 RTP/AVP 0 8\r\n" +
	"m=video 51372 RTP/AVP 31\r\n" +
	"c=IN IP4 192.0.2.102\r\n"

func TestParseMediaUsesSessionAddressAsFallback(t *testing.T) {
	is := is.New(t)
	medias, err := ParseMedia([]byte(sdpBody))
	is.NoErr(err)
	is.Equal(len(medias), 2)

	is.Equal(medias[0].Type, "audio")
	is.Equal(medias[0].Endpoint.Port, uint16(49170))
	is.Equal(medias[0].Endpoint.Addr.String(), "192.0.2.101")
	is.Equal(medias[0].Formats, []string{"0", "8"})

	is.Equal(medias[1].Type, "video")
	is.Equal(medias[1].Endpoint.Port, uint16(51372))
	is.Equal(medias[1].Endpoint.Addr.String(), "192.0.2.102")
}

func TestParseMediaInvalidBody(t *testing.T) {
	is := is.New(t)
	_, err := ParseMedia([]byte("not sdp at all"))
	is.True(err != nil)
}

func TestMediaDescriptorKeyStable(t *testing.T) {
	is := is.New(t)
	medias, err := ParseMedia([]byte(sdpBody))
	is.NoErr(err)
	is.Equal(medias[0].Key(), medias[0].Key())
	is.True(medias[0].Key() != medias[1].Key())
}
