package transport

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// tcpListener wraps a plain TCP listener for the relay side.
type tcpListener struct {
	ln net.Listener
}

// ListenTCP creates a TCP listener on addr ("127.0.0.1:0" picks a free port).
func ListenTCP(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "TCP listen on %s failed", addr)
	}
	return &tcpListener{ln: ln}, nil
}

// Addr returns the bound address, including the port the OS picked.
func (l *tcpListener) Addr() string {
	return l.ln.Addr().String()
}

// Accept waits for a new TCP connection or for ctx to end.
func (l *tcpListener) Accept(ctx context.Context) (Conn, error) {
	// Use a channel so we can respect context cancellation
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, errors.Wrap(res.err, "accept TCP connection failed")
		}
		return res.conn, nil
	case <-ctx.Done():
		// The goroutine stays blocked in Accept until the listener closes.
		// Anything it accepts after we gave up must not leak.
		go func() {
			res := <-ch
			if res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Close shuts down the TCP listener.
func (l *tcpListener) Close() error {
	return l.ln.Close()
}
