package client

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/chronologos/relaychat/internal/protocol"
)

var (
	// ErrSessionSpent is returned by Connect on a session that has already
	// been disconnected. Sessions are single-use.
	ErrSessionSpent = errors.New("session already used")
	// ErrSessionBusy is returned by Connect while a connection is in progress,
	// established, or still held open after a rejected handshake.
	ErrSessionBusy = errors.New("session busy")
)

// ConnectErrorKind says which step of Connect failed.
type ConnectErrorKind int

const (
	ConnectUnreachable ConnectErrorKind = iota // dial or name write failed
	ConnectRejected                            // server answered with a code other than ConnAccepted
	ConnectInvalidName                         // name failed local validation, nothing was sent
	ConnectHandshake                           // no usable reply to the name
)

func (k ConnectErrorKind) String() string {
	switch k {
	case ConnectUnreachable:
		return "server unreachable"
	case ConnectRejected:
		return "rejected by server"
	case ConnectInvalidName:
		return "invalid name"
	case ConnectHandshake:
		return "handshake failed"
	default:
		return fmt.Sprintf("ConnectErrorKind(%d)", int(k))
	}
}

// ConnectError is returned by Session.Connect.
type ConnectError struct {
	Kind ConnectErrorKind
	Code protocol.StatusCode // set for ConnectRejected
	Err  error
}

func (e *ConnectError) Error() string {
	switch {
	case e.Kind == ConnectRejected:
		return fmt.Sprintf("connect: %s with %s", e.Kind, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("connect: %s: %v", e.Kind, e.Err)
	default:
		return "connect: " + e.Kind.String()
	}
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendErrorKind says why a message was not confirmed.
type SendErrorKind int

const (
	SendNotConnected       SendErrorKind = iota
	SendInvalidDestination                // destination is not a valid name
	SendInvalidBody                       // empty or contains the field delimiter
	SendTransportFailure                  // the write itself failed
	SendTimeout                           // no status arrived within the confirmation window
	SendRejected                          // server answered with a failure code
)

func (k SendErrorKind) String() string {
	switch k {
	case SendNotConnected:
		return "not connected"
	case SendInvalidDestination:
		return "invalid destination"
	case SendInvalidBody:
		return "invalid body"
	case SendTransportFailure:
		return "transport failure"
	case SendTimeout:
		return "confirmation timed out"
	case SendRejected:
		return "rejected by server"
	default:
		return fmt.Sprintf("SendErrorKind(%d)", int(k))
	}
}

// SendError is returned by Session.SendMessage and the other send paths.
type SendError struct {
	Kind SendErrorKind
	Code protocol.StatusCode // set for SendRejected
	Err  error
}

func (e *SendError) Error() string {
	switch {
	case e.Kind == SendRejected:
		return fmt.Sprintf("send: %s with %s", e.Kind, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("send: %s: %v", e.Kind, e.Err)
	default:
		return "send: " + e.Kind.String()
	}
}

func (e *SendError) Unwrap() error { return e.Err }

// IsRejected reports whether err is a server rejection from Connect or
// SendMessage, and returns the code the server sent.
func IsRejected(err error) (protocol.StatusCode, bool) {
	var ce *ConnectError
	if errors.As(err, &ce) && ce.Kind == ConnectRejected {
		return ce.Code, true
	}
	var se *SendError
	if errors.As(err, &se) && se.Kind == SendRejected {
		return se.Code, true
	}
	return 0, false
}
