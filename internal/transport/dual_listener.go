package transport

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// dualListener accepts relay connections over TCP and QUIC on the same port
// number. Accept returns whichever connection arrives first.
type dualListener struct {
	tcp  *tcpListener
	quic *quicListener

	// connCh receives connections from both accept loops.
	connCh chan acceptRes
	// cancel stops both accept loops on Close.
	cancel context.CancelFunc
}

type acceptRes struct {
	conn Conn
	err  error
}

// ListenDual binds TCP on addr first (so port 0 gets a concrete port), then
// QUIC on the same port. UDP and TCP port spaces do not conflict.
func ListenDual(addr string) (Listener, error) {
	tl, err := ListenTCP(addr)
	if err != nil {
		return nil, err
	}
	host, port, err := net.SplitHostPort(tl.Addr())
	if err != nil {
		tl.Close()
		return nil, errors.Wrap(err, "split TCP address failed")
	}

	cert, err := selfSignedCert(host)
	if err != nil {
		tl.Close()
		return nil, errors.Wrap(err, "generate TLS cert failed")
	}
	ql, err := listenQUIC(net.JoinHostPort(host, port), cert)
	if err != nil {
		tl.Close()
		return nil, errors.Wrapf(err, "QUIC listen on port %s failed", port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	dl := &dualListener{
		tcp:    tl.(*tcpListener),
		quic:   ql,
		connCh: make(chan acceptRes, 4),
		cancel: cancel,
	}

	go dl.acceptLoop(ctx, dl.tcp)
	go dl.acceptLoop(ctx, dl.quic)

	return dl, nil
}

func (dl *dualListener) acceptLoop(ctx context.Context, ln Listener) {
	for {
		conn, err := ln.Accept(ctx)
		select {
		case dl.connCh <- acceptRes{conn: conn, err: err}:
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil && ctx.Err() != nil {
			return
		}
	}
}

// Accept returns the next connection from either transport.
func (dl *dualListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case res := <-dl.connCh:
		return res.conn, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr returns the TCP address; the QUIC listener shares its port.
func (dl *dualListener) Addr() string {
	return dl.tcp.Addr()
}

// Close shuts down both listeners.
func (dl *dualListener) Close() error {
	dl.cancel()
	tcpErr := dl.tcp.Close()
	quicErr := dl.quic.Close()
	if quicErr != nil {
		return quicErr
	}
	return tcpErr
}
