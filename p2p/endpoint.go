package p2p

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Endpoint is a fully resolved peer address: an IP literal plus TCP port.
// Hostnames are rejected at parse time so the connection registry never
// depends on resolver state.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

// ParseEndpoint parses the textual peer address forms accepted by addnode:
// a bare IP (takes defaultPort), "host:port", "[v6]:port", and the
// unbracketed v6-with-port form where everything before the last colon is
// the address ("::ffff:192.168.0.1:80").
func ParseEndpoint(addr string, defaultPort uint16) (Endpoint, error) {
	if addr == "" {
		return Endpoint{}, errors.New("empty peer address")
	}
	if ip := net.ParseIP(addr); ip != nil {
		return Endpoint{IP: ip, Port: defaultPort}, nil
	}

	var host, portStr string
	if addr[0] == '[' {
		var err error
		host, portStr, err = net.SplitHostPort(addr)
		if err != nil {
			return Endpoint{}, errors.Errorf("invalid peer address %q", addr)
		}
	} else {
		i := strings.LastIndexByte(addr, ':')
		if i < 0 {
			return Endpoint{}, errors.Errorf("invalid peer address %q", addr)
		}
		host, portStr = addr[:i], addr[i+1:]
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return Endpoint{}, errors.Errorf("invalid peer address %q: host %q is not an IP literal", addr, host)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, errors.Errorf("invalid peer address %q: bad port %q", addr, portStr)
	}
	return Endpoint{IP: ip, Port: uint16(port)}, nil
}

// String renders the endpoint in dial-ready form, bracketing IPv6 addresses.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP.String(), strconv.FormatUint(uint64(e.Port), 10))
}

// Equal reports whether two endpoints name the same (address, port) pair.
// IPv4 addresses compare equal to their IPv6-mapped form.
func (e Endpoint) Equal(other Endpoint) bool {
	return e.Port == other.Port && e.IP.Equal(other.IP)
}
