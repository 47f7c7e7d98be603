package transport

import (
	"context"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DialMode selects which transport to use when dialing.
type DialMode int

const (
	DialTCP DialMode = iota
	DialQUIC
)

func (m DialMode) String() string {
	switch m {
	case DialTCP:
		return "tcp"
	case DialQUIC:
		return "quic"
	default:
		return "unknown"
	}
}

// ParseDialMode accepts "tcp" or "quic" (case-insensitive). Empty means TCP.
func ParseDialMode(raw string) (DialMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "tcp":
		return DialTCP, nil
	case "quic":
		return DialQUIC, nil
	default:
		return DialTCP, errors.Errorf("unknown transport %q", raw)
	}
}

// Conn is one reliable bidirectional byte stream to the relay server.
// net.Conn satisfies it for TCP; QUIC connections wrap a single stream.
//
// The stream has no framing. Each Read returns whatever has arrived, which
// the relay protocol treats as exactly one frame.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

// Listener accepts stream connections. Used by test relays.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}

// Dial opens a connection to addr ("host:port") using the given mode.
func Dial(ctx context.Context, mode DialMode, addr string) (Conn, error) {
	switch mode {
	case DialTCP:
		return dialTCP(ctx, addr)
	case DialQUIC:
		return dialQUIC(ctx, addr)
	default:
		return nil, errors.Errorf("unsupported dial mode %d", int(mode))
	}
}

// IsTimeout reports whether err is a read or write deadline expiring.
// Deadline expiry is how the receive loop learns the socket is idle.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
