package transport

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

// dialQUIC connects to a relay's QUIC listener and opens the single stream
// the relay protocol runs on. QUIC does not announce a stream to the peer
// until its first write; the handshake name write does that.
func dialQUIC(ctx context.Context, addr string) (Conn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s failed", addr)
	}

	// Use a fresh UDP socket for every session.
	udpConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, errors.Wrap(err, "listen UDP failed")
	}

	tr := &quic.Transport{Conn: udpConn}
	qconn, err := tr.Dial(ctx, udpAddr, clientTLSConfig(), quicConfig())
	if err != nil {
		tr.Close()
		udpConn.Close()
		return nil, errors.Wrapf(err, "QUIC dial %s failed", addr)
	}

	stream, err := qconn.OpenStreamSync(ctx)
	if err != nil {
		qconn.CloseWithError(1, "open stream failed")
		tr.Close()
		udpConn.Close()
		return nil, errors.Wrap(err, "open QUIC stream failed")
	}

	return &quicConn{
		qconn:  qconn,
		stream: stream,
		tr:     tr,
		udp:    udpConn,
	}, nil
}
