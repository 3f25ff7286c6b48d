package p2p

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// Conn is a live, handshaked peer connection. The wire protocol behind it is
// outside this package; the connection manager only tracks identity and
// lifetime.
type Conn interface {
	RemoteEndpoint() Endpoint
	Close() error
}

// Dialer performs the connect/handshake exchange with a peer. Implementations
// must honor ctx cancellation and deadlines.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Conn, error)
}

// TCPDialer is the default Dialer: a plain TCP connect with no negotiation
// beyond the transport handshake.
type TCPDialer struct{}

func (TCPDialer) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", ep.String())
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", ep)
	}
	return &tcpConn{conn: c, remote: ep}, nil
}

type tcpConn struct {
	conn   net.Conn
	remote Endpoint
}

func (c *tcpConn) RemoteEndpoint() Endpoint { return c.remote }

func (c *tcpConn) Close() error { return c.conn.Close() }
