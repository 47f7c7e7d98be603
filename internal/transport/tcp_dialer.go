package transport

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// dialTCP connects to a relay's TCP listener. The returned net.Conn is used
// as-is: the relay protocol runs directly on the byte stream.
func dialTCP(ctx context.Context, addr string) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "TCP dial %s failed", addr)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// Frames are tiny and latency matters more than packet count.
		tc.SetNoDelay(true)
	}
	return conn, nil
}
