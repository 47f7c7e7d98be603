// Package relaytest provides a scripted relay server for tests.
//
// The server speaks the relay wire protocol: it registers clients by name,
// routes src|dest|body frames as src|body, waits for the recipient's
// MsgReceived and reports MsgSuccess or MsgFailed back to the sender. Tests
// can also inject raw frames, inspect what a client sent, and drop clients.
package relaytest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chronologos/relaychat/internal/protocol"
	"github.com/chronologos/relaychat/internal/transport"
)

const (
	nameTimeout = 2 * time.Second
	ackTimeout  = time.Second
	inboxSize   = 64
)

// Server is a relay server bound to a loopback port.
type Server struct {
	ln   transport.Listener
	opts options
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients map[string]*peer
	inboxes map[string]chan string // survives disconnects so tests can read late frames
	conns   int
}

type peer struct {
	id    string
	name  string
	conn  transport.Conn
	wmu   sync.Mutex
	inbox chan string
}

type options struct {
	listen    func(addr string) (transport.Listener, error)
	handshake func(name string) (protocol.StatusCode, bool)
	routing   bool
	logger    zerolog.Logger
}

// Option configures a Server.
type Option func(*options)

// WithListener selects the transport, e.g. transport.ListenQUIC or
// transport.ListenDual. The default is transport.ListenTCP.
func WithListener(listen func(addr string) (transport.Listener, error)) Option {
	return func(o *options) { o.listen = listen }
}

// WithHandshake overrides the reply to a name. Returning reply=false sends
// nothing and leaves the connection open.
func WithHandshake(fn func(name string) (code protocol.StatusCode, reply bool)) Option {
	return func(o *options) { o.handshake = fn }
}

// WithoutRouting makes the server swallow chat frames silently; they land in
// the sender's inbox instead.
func WithoutRouting() Option {
	return func(o *options) { o.routing = false }
}

// WithLogger attaches a logger for server-side events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Start listens on 127.0.0.1:0 and serves until the test ends.
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()

	o := options{
		listen:  transport.ListenTCP,
		routing: true,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ln, err := o.listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("relaytest: listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		ln:      ln,
		opts:    o,
		log:     o.logger.With().Str("component", "relaytest").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]*peer),
		inboxes: make(map[string]chan string),
	}

	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the address clients should dial.
func (s *Server) Addr() string { return s.ln.Addr() }

// Connections returns how many connections were accepted so far.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// Names returns the registered names, sorted.
func (s *Server) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.clients))
	for n := range s.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close stops accepting and drops every client.
func (s *Server) Close() {
	s.cancel()
	s.ln.Close()
	s.mu.Lock()
	for _, p := range s.clients {
		p.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.Debug().Err(err).Msg("accept failed")
			continue
		}
		s.mu.Lock()
		s.conns++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn transport.Conn) {
	defer s.wg.Done()
	p := &peer{id: uuid.NewString(), conn: conn}
	log := s.log.With().Str("conn", p.id).Logger()

	conn.SetReadDeadline(time.Now().Add(nameTimeout))
	buf := make([]byte, protocol.BufferSize)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		log.Debug().Err(err).Msg("no name")
		p.write(protocol.EncodeStatus(protocol.MissingName))
		conn.Close()
		return
	}
	name := strings.TrimRight(string(buf[:n]), "\x00")
	p.name = name
	log = log.With().Str("name", name).Logger()

	if s.opts.handshake != nil {
		code, reply := s.opts.handshake(name)
		if !reply {
			log.Debug().Msg("withholding handshake reply")
			<-s.ctx.Done()
			conn.Close()
			return
		}
		if code != protocol.ConnAccepted {
			p.write(protocol.EncodeStatus(code))
			conn.Close()
			return
		}
	}

	if !s.register(p) {
		log.Debug().Msg("name taken")
		p.write(protocol.EncodeStatus(protocol.InvalidName))
		conn.Close()
		return
	}
	p.write(protocol.EncodeStatus(protocol.ConnAccepted))
	log.Debug().Msg("registered")

	defer s.unregister(p)
	for {
		conn.SetReadDeadline(time.Time{})
		n, err := conn.Read(buf)
		if err != nil {
			log.Debug().Err(err).Msg("read ended")
			return
		}
		frame := strings.TrimRight(string(buf[:n]), "\x00")

		if frame == string(protocol.EncodeStatus(protocol.Disconnect)) {
			log.Debug().Msg("client disconnected")
			p.push(frame)
			return
		}

		parts := strings.Split(frame, protocol.Delimiter)
		if len(parts) == protocol.SendFields && s.opts.routing {
			go s.route(p, parts[0], parts[1], parts[2])
			continue
		}
		p.push(frame)
	}
}

// route forwards one message and reports the outcome to the sender.
func (s *Server) route(from *peer, src, dest, body string) {
	s.mu.Lock()
	to, ok := s.clients[dest]
	s.mu.Unlock()
	if !ok {
		from.write(protocol.EncodeStatus(protocol.InvalidDest))
		return
	}

	// Drain anything stale so the next frame is the recipient's answer.
	for len(to.inbox) > 0 {
		<-to.inbox
	}
	to.write([]byte(src + protocol.Delimiter + body))

	select {
	case ack := <-to.inbox:
		if ack == string(protocol.EncodeStatus(protocol.MsgReceived)) {
			from.write(protocol.EncodeStatus(protocol.MsgSuccess))
			return
		}
	case <-time.After(ackTimeout):
	case <-s.ctx.Done():
		return
	}
	from.write(protocol.EncodeStatus(protocol.MsgFailed))
}

func (s *Server) register(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.clients[p.name]; taken {
		return false
	}
	inbox, ok := s.inboxes[p.name]
	if !ok {
		inbox = make(chan string, inboxSize)
		s.inboxes[p.name] = inbox
	}
	p.inbox = inbox
	s.clients[p.name] = p
	return true
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	if s.clients[p.name] == p {
		delete(s.clients, p.name)
	}
	s.mu.Unlock()
	p.conn.Close()
}

func (p *peer) write(data []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err := p.conn.Write(data)
	return err
}

func (p *peer) push(frame string) {
	select {
	case p.inbox <- frame:
	default:
	}
}

// Inject writes raw bytes to the named client.
func (s *Server) Inject(t testing.TB, name, raw string) {
	t.Helper()
	s.mu.Lock()
	p, ok := s.clients[name]
	s.mu.Unlock()
	if !ok {
		t.Fatalf("relaytest: no client named %q", name)
	}
	if err := p.write([]byte(raw)); err != nil {
		t.Fatalf("relaytest: write to %q: %v", name, err)
	}
}

// Kick closes the named client's connection from the server side.
func (s *Server) Kick(t testing.TB, name string) {
	t.Helper()
	s.mu.Lock()
	p, ok := s.clients[name]
	s.mu.Unlock()
	if !ok {
		t.Fatalf("relaytest: no client named %q", name)
	}
	p.conn.Close()
}

// Expect waits for the next unrouted frame from name and compares it.
func (s *Server) Expect(t testing.TB, name, want string) {
	t.Helper()
	got, ok := s.Next(name, 2*time.Second)
	if !ok {
		t.Fatalf("relaytest: timed out waiting for %q from %q", want, name)
	}
	if got != want {
		t.Fatalf("relaytest: %q sent %q, want %q", name, got, want)
	}
}

// ExpectQuiet fails if name sends an unrouted frame within d.
func (s *Server) ExpectQuiet(t testing.TB, name string, d time.Duration) {
	t.Helper()
	if got, ok := s.Next(name, d); ok {
		t.Fatalf("relaytest: unexpected frame %q from %q", got, name)
	}
}

// Next returns the next unrouted frame from name, waiting up to d.
func (s *Server) Next(name string, d time.Duration) (string, bool) {
	s.mu.Lock()
	inbox, ok := s.inboxes[name]
	s.mu.Unlock()
	if !ok {
		// Wait for registration.
		deadline := time.Now().Add(d)
		for !ok && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
			s.mu.Lock()
			inbox, ok = s.inboxes[name]
			s.mu.Unlock()
		}
		if !ok {
			return "", false
		}
	}
	select {
	case f := <-inbox:
		return f, true
	case <-time.After(d):
		return "", false
	}
}
