package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

// streamAcceptTimeout bounds how long Accept waits for a new QUIC connection
// to open its stream, so a silent peer cannot stall the accept path.
const streamAcceptTimeout = 5 * time.Second

// quicListener wraps a QUIC listener for the relay side.
type quicListener struct {
	tr  *quic.Transport
	ln  *quic.Listener
	udp *net.UDPConn
}

// ListenQUIC creates a QUIC listener on addr with an ephemeral certificate.
func ListenQUIC(addr string) (Listener, error) {
	host, _, _ := net.SplitHostPort(addr)
	cert, err := selfSignedCert(host)
	if err != nil {
		return nil, errors.Wrap(err, "generate TLS cert failed")
	}
	return listenQUIC(addr, cert)
}

func listenQUIC(addr string, cert tls.Certificate) (*quicListener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s failed", addr)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen UDP on %s failed", addr)
	}

	tr := &quic.Transport{Conn: udpConn}
	ln, err := tr.Listen(serverTLSConfig(cert), quicConfig())
	if err != nil {
		udpConn.Close()
		return nil, errors.Wrap(err, "QUIC listen failed")
	}

	return &quicListener{tr: tr, ln: ln, udp: udpConn}, nil
}

// Addr returns the bound UDP address.
func (l *quicListener) Addr() string {
	return l.udp.LocalAddr().String()
}

// Accept waits for a QUIC connection and its relay stream.
func (l *quicListener) Accept(ctx context.Context) (Conn, error) {
	qconn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "accept QUIC connection failed")
	}

	streamCtx, cancel := context.WithTimeout(ctx, streamAcceptTimeout)
	defer cancel()
	stream, err := qconn.AcceptStream(streamCtx)
	if err != nil {
		qconn.CloseWithError(1, "no stream")
		return nil, errors.Wrap(err, "accept QUIC stream failed")
	}

	return &quicConn{qconn: qconn, stream: stream}, nil
}

// Close shuts down the listener and underlying transport.
func (l *quicListener) Close() error {
	l.ln.Close()
	l.tr.Close()
	return l.udp.Close()
}
