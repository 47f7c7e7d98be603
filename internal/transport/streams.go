package transport

import (
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// quicConn carries the relay byte stream over a single bidirectional QUIC
// stream. The dialing side opens the stream; the listening side accepts it.
type quicConn struct {
	qconn  *quic.Conn
	stream *quic.Stream
	tr     *quic.Transport // dial side only; keeps the UDP socket alive
	udp    net.PacketConn  // dial side only

	closeOnce sync.Once
	closeErr  error
}

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:    30 * time.Second,
		KeepAlivePeriod:   10 * time.Second, // chat sessions sit idle for long stretches
		InitialPacketSize: 1200,
	}
}

func (c *quicConn) Read(p []byte) (int, error) {
	return c.stream.Read(p)
}

func (c *quicConn) Write(p []byte) (int, error) {
	return c.stream.Write(p)
}

func (c *quicConn) SetReadDeadline(t time.Time) error {
	return c.stream.SetReadDeadline(t)
}

func (c *quicConn) SetWriteDeadline(t time.Time) error {
	return c.stream.SetWriteDeadline(t)
}

func (c *quicConn) RemoteAddr() net.Addr {
	return c.qconn.RemoteAddr()
}

// Close sends FIN on the stream, then tears down the QUIC connection and,
// on the dial side, the UDP socket.
func (c *quicConn) Close() error {
	c.closeOnce.Do(func() {
		c.stream.Close()
		c.stream.CancelRead(0)
		c.closeErr = c.qconn.CloseWithError(0, "closed")
		if c.tr != nil {
			c.tr.Close()
		}
		if c.udp != nil {
			c.udp.Close()
		}
	})
	return c.closeErr
}
