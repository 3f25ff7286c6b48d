package p2p

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		name string
		addr string
		want string
	}{
		{"v4 with port", "192.168.0.1:8333", "192.168.0.1:8333"},
		{"v4 default port", "10.0.0.1", "10.0.0.1:18444"},
		{"v4-mapped v6 with port", "::ffff:192.168.0.1:80", "192.168.0.1:80"},
		{"bare v6 default port", "2001:db8::1", "[2001:db8::1]:18444"},
		{"bracketed v6 with port", "[2001:db8::1]:9000", "[2001:db8::1]:9000"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ep, err := ParseEndpoint(c.addr, 18444)
			assert.NoError(t, err)
			assert.Equal(t, c.want, ep.String())
		})
	}
}

func TestParseEndpointRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"junk",
		"example.com:80",
		"10.0.0.1:",
		"10.0.0.1:99999",
		"10.0.0.1:-1",
		":8333",
		"[2001:db8::1]",
	}
	for _, addr := range bad {
		_, err := ParseEndpoint(addr, 18444)
		assert.Error(t, err, addr)
	}
}

func TestEndpointEqual(t *testing.T) {
	assert := assert.New(t)

	a := Endpoint{IP: net.ParseIP("192.168.0.1"), Port: 80}
	mapped, err := ParseEndpoint("::ffff:192.168.0.1:80", 18444)
	assert.NoError(err)
	assert.True(a.Equal(mapped))

	b := Endpoint{IP: net.ParseIP("192.168.0.1"), Port: 81}
	assert.False(a.Equal(b))

	c := Endpoint{IP: net.ParseIP("192.168.0.2"), Port: 80}
	assert.False(a.Equal(c))
}
