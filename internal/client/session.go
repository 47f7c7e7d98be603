package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/chronologos/relaychat/internal/logging"
	"github.com/chronologos/relaychat/internal/protocol"
	"github.com/chronologos/relaychat/internal/transport"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is one registration with a relay server. It is single-use: once
// disconnected, by either side, Connect returns ErrSessionSpent.
type Session struct {
	cfg     Config
	handler Handler
	threads ThreadHandler // nil if handler does not implement it
	log     zerolog.Logger
	id      uuid.UUID

	confirm *Confirmation
	thread  *Thread

	// writeSem serializes writes from callers and the receive loop.
	writeSem *semaphore.Weighted
	// sendSem allows one unconfirmed SendMessage at a time.
	sendSem *semaphore.Weighted

	mu       sync.Mutex
	state    State
	spent    bool
	name     string
	conn     transport.Conn
	loopCtx  context.Context // done once the connection is going away
	stop     context.CancelFunc
	loopDone chan struct{}
}

// New creates an idle session. A nil handler discards all notifications.
func New(cfg Config, h Handler) *Session {
	if h == nil {
		h = HandlerFuncs{}
	}
	cfg = cfg.withDefaults()
	id := uuid.New()
	s := &Session{
		cfg:      cfg,
		handler:  h,
		log:      logging.Component(cfg.Logger, "client").With().Str("session", id.String()).Logger(),
		id:       id,
		confirm:  &Confirmation{},
		thread:   &Thread{},
		writeSem: semaphore.NewWeighted(1),
		sendSem:  semaphore.NewWeighted(1),
	}
	if th, ok := h.(ThreadHandler); ok {
		s.threads = th
	}
	return s
}

// Connect dials addr, registers name and starts the receive loop.
//
// A rejected name leaves the socket open and the session idle; call Close
// to release it.
func (s *Session) Connect(ctx context.Context, addr, name string) error {
	if err := protocol.ValidateName(name); err != nil {
		return &ConnectError{Kind: ConnectInvalidName, Err: err}
	}

	s.mu.Lock()
	switch {
	case s.spent:
		s.mu.Unlock()
		return ErrSessionSpent
	case s.state != StateIdle || s.conn != nil:
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.state = StateConnecting
	s.mu.Unlock()

	log := s.log.With().Str("addr", addr).Str("transport", s.cfg.DialMode.String()).Str("name", name).Logger()

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	conn, err := transport.Dial(dialCtx, s.cfg.DialMode, addr)
	cancel()
	if err != nil {
		s.setState(StateIdle)
		log.Warn().Err(err).Msg("dial failed")
		s.handler.OnConsoleLog("Could not connect to server. Check if the server is on.")
		return &ConnectError{Kind: ConnectUnreachable, Err: err}
	}

	if err := s.write(ctx, conn, []byte(name)); err != nil {
		conn.Close()
		s.setState(StateIdle)
		log.Warn().Err(err).Msg("name write failed")
		s.handler.OnConsoleLog("Name could not be sent.")
		return &ConnectError{Kind: ConnectUnreachable, Err: err}
	}

	code, err := s.handshake(ctx, conn, name)
	if err != nil {
		conn.Close()
		s.setState(StateIdle)
		log.Warn().Err(err).Msg("handshake failed")
		s.handler.OnConsoleLog(fmt.Sprintf("Connection failed: %v", err))
		return &ConnectError{Kind: ConnectHandshake, Err: err}
	}

	s.mu.Lock()
	if s.spent {
		// Closed while we were dialing.
		s.state = StateIdle
		s.mu.Unlock()
		conn.Close()
		return ErrSessionSpent
	}
	if code != protocol.ConnAccepted {
		s.conn = conn
		s.state = StateIdle
		s.mu.Unlock()
		log.Info().Stringer("code", code).Msg("connection rejected")
		s.handler.OnConsoleLog(fmt.Sprintf("Connection failed with error code %s", code))
		return &ConnectError{Kind: ConnectRejected, Code: code}
	}
	s.conn = conn
	s.name = name
	s.state = StateConnected
	s.loopCtx, s.stop = context.WithCancel(context.Background())
	s.loopDone = make(chan struct{})
	loopCtx, done := s.loopCtx, s.loopDone
	s.mu.Unlock()

	log.Info().Msg("connected")
	go s.receiveLoop(loopCtx, conn, done)
	return nil
}

// handshake waits for the server's answer to the name frame.
func (s *Session) handshake(ctx context.Context, conn transport.Conn, name string) (protocol.StatusCode, error) {
	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	if err := conn.SetReadDeadline(deadline(ctx, s.cfg.HandshakeTimeout)); err != nil {
		return 0, errors.Wrap(err, "set read deadline failed")
	}
	buf := make([]byte, s.cfg.BufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return 0, errors.Wrap(err, "read handshake reply failed")
	}

	frame, err := protocol.Decode(buf[:n], name)
	if err != nil {
		return 0, errors.Wrap(err, "decode handshake reply failed")
	}
	sf, ok := frame.(*protocol.StatusFrame)
	if !ok {
		return 0, errors.Errorf("expected a status code, got %q", buf[:n])
	}
	return sf.Code, nil
}

// Disconnect tells the server goodbye, stops the receive loop and closes the
// socket. It is a no-op unless the session is connected. Any SendMessage
// still waiting for its confirmation returns SendNotConnected.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDisconnecting
	conn, stop, done := s.conn, s.stop, s.loopDone
	s.mu.Unlock()

	writeErr := s.write(ctx, conn, protocol.EncodeStatus(protocol.Disconnect))
	stop()
	s.confirm.cancel()

	grace := time.NewTimer(s.cfg.StopGrace)
	select {
	case <-done:
	case <-grace.C:
		s.log.Warn().Dur("grace", s.cfg.StopGrace).Msg("receive loop did not stop in time")
	case <-ctx.Done():
	}
	grace.Stop()

	closeErr := conn.Close()

	s.mu.Lock()
	s.conn = nil
	s.state = StateIdle
	s.spent = true
	s.mu.Unlock()

	s.log.Info().Msg("disconnected")
	if writeErr != nil {
		return errors.Wrap(writeErr, "send disconnect failed")
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "close connection failed")
	}
	return nil
}

// Close releases the session in any state. A connected session is
// disconnected first; a socket held open by a rejected handshake is closed.
// The session is spent afterwards.
func (s *Session) Close() error {
	if s.State() == StateConnected {
		return s.Disconnect(context.Background())
	}

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.spent = true
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// SendMessage sends body to destination and waits for the server's verdict.
// It returns true only when the server answers MsgSuccess within
// ConfirmTimeout; every other outcome carries a *SendError.
func (s *Session) SendMessage(ctx context.Context, destination, body string) (bool, error) {
	conn, loopCtx, name, ok := s.active()
	if !ok {
		return false, &SendError{Kind: SendNotConnected}
	}

	frame, err := protocol.Encode(name, destination, body)
	if err != nil {
		if errors.Is(err, protocol.ErrInvalidBody) {
			return false, &SendError{Kind: SendInvalidBody, Err: err}
		}
		return false, &SendError{Kind: SendInvalidDestination, Err: err}
	}

	if err := s.sendSem.Acquire(ctx, 1); err != nil {
		return false, &SendError{Kind: SendTimeout, Err: err}
	}
	defer s.sendSem.Release(1)

	wait := s.confirm.arm()
	if err := s.write(ctx, conn, frame); err != nil {
		s.confirm.disarm()
		s.log.Warn().Err(err).Str("dest", destination).Msg("message write failed")
		s.handler.OnConsoleLog("Message could not be sent.")
		return false, &SendError{Kind: SendTransportFailure, Err: err}
	}

	timer := time.NewTimer(s.cfg.ConfirmTimeout)
	defer timer.Stop()

	select {
	case res := <-wait:
		switch {
		case res.cancelled:
			return false, &SendError{Kind: SendNotConnected}
		case res.code == protocol.MsgSuccess:
			s.observe(name, destination)
			s.log.Debug().Str("dest", destination).Msg("message confirmed")
			return true, nil
		default:
			s.log.Debug().Str("dest", destination).Stringer("code", res.code).Msg("message rejected")
			return false, &SendError{Kind: SendRejected, Code: res.code}
		}
	case <-timer.C:
		s.confirm.disarm()
		s.log.Debug().Str("dest", destination).Dur("timeout", s.cfg.ConfirmTimeout).Msg("confirmation timed out")
		return false, &SendError{Kind: SendTimeout}
	case <-loopCtx.Done():
		s.confirm.disarm()
		return false, &SendError{Kind: SendNotConnected}
	case <-ctx.Done():
		s.confirm.disarm()
		return false, &SendError{Kind: SendTimeout, Err: ctx.Err()}
	}
}

// SendStatus writes a bare status code. Nothing waits for a reply.
func (s *Session) SendStatus(ctx context.Context, code protocol.StatusCode) error {
	if !code.Valid() {
		return errors.Errorf("invalid status code %d", int(code))
	}
	conn, _, _, ok := s.active()
	if !ok {
		return &SendError{Kind: SendNotConnected}
	}
	if err := s.write(ctx, conn, protocol.EncodeStatus(code)); err != nil {
		return &SendError{Kind: SendTransportFailure, Err: err}
	}
	return nil
}

// RequestRoster asks the server for the connected names. The reply, if the
// server sends one, arrives through the Handler like any other frame.
func (s *Session) RequestRoster(ctx context.Context) error {
	return s.SendStatus(ctx, protocol.ReqClients)
}

// write sends one frame. Writes never interleave.
func (s *Session) write(ctx context.Context, conn transport.Conn, data []byte) error {
	if err := s.writeSem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "acquire write lock failed")
	}
	defer s.writeSem.Release(1)

	if err := conn.SetWriteDeadline(deadline(ctx, s.cfg.WriteTimeout)); err != nil {
		return errors.Wrap(err, "set write deadline failed")
	}
	if _, err := conn.Write(data); err != nil {
		return errors.Wrap(err, "write failed")
	}
	return nil
}

// active returns the live connection, or ok=false when not connected.
func (s *Session) active() (conn transport.Conn, loopCtx context.Context, name string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return nil, nil, "", false
	}
	return s.conn, s.loopCtx, s.name, true
}

func (s *Session) observe(sender, destination string) {
	if s.thread.Observe(sender, destination) && s.threads != nil {
		s.threads.OnThreadChange(sender, destination)
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the session can send.
func (s *Session) Connected() bool { return s.State() == StateConnected }

// Name returns the registered name, empty until a handshake succeeds.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id.String() }

// Awaiting reports whether a SendMessage is waiting for its confirmation.
func (s *Session) Awaiting() bool { return s.confirm.Awaiting() }

// Confirmation exposes the confirmation tracker for inspection.
func (s *Session) Confirmation() *Confirmation { return s.confirm }

// Thread returns the conversation tracker.
func (s *Session) Thread() *Thread { return s.thread }

// deadline returns now+d, or ctx's deadline if that comes first.
func deadline(ctx context.Context, d time.Duration) time.Time {
	t := time.Now().Add(d)
	if cd, ok := ctx.Deadline(); ok && cd.Before(t) {
		return cd
	}
	return t
}
