package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronologos/relaychat/internal/client"
	"github.com/chronologos/relaychat/internal/testutil/relaytest"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		in   string
		want chatLine
	}{
		{"", chatLine{kind: lineEmpty}},
		{"   ", chatLine{kind: lineEmpty}},
		{"/quit", chatLine{kind: lineQuit}},
		{"/who", chatLine{kind: lineWho}},
		{"/history", chatLine{kind: lineHistory, n: defaultHistory}},
		{"/history 5", chatLine{kind: lineHistory, n: 5}},
		{"/history x", chatLine{kind: lineUnknown, text: "/history x"}},
		{"/historyx", chatLine{kind: lineUnknown, text: "/historyx"}},
		{"/to bob", chatLine{kind: lineSetDest, dest: "bob"}},
		{"/to   carol ", chatLine{kind: lineSetDest, dest: "carol"}},
		{"/dance", chatLine{kind: lineUnknown, text: "/dance"}},
		{"@bob hi there", chatLine{kind: lineSend, dest: "bob", text: "hi there"}},
		{"@bob", chatLine{kind: lineSend, dest: "bob"}},
		{"hello", chatLine{kind: lineSend, text: "hello"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseLine(tc.in), "input %q", tc.in)
	}
}

// syncBuffer lets the receive loop and the test share an output buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fastConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.SettleDelay = 10 * time.Millisecond
	cfg.ConfirmTimeout = 2 * time.Second
	cfg.PollInterval = 5 * time.Millisecond
	cfg.ReadTimeout = 20 * time.Millisecond
	return cfg
}

func startTerminal(t *testing.T, srv *relaytest.Server, name string) (*client.Session, *terminal, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	tty := newTerminal(out, false, name)
	s := client.New(fastConfig(), tty)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Connect(context.Background(), srv.Addr(), name))
	return s, tty, out
}

func TestTerminalChat(t *testing.T) {
	srv := relaytest.Start(t)
	alice, aliceTTY, aliceOut := startTerminal(t, srv, "alice")
	_, bobTTY, bobOut := startTerminal(t, srv, "bob")

	script := strings.Join([]string{
		"hello before dest",
		"/to bob",
		"hi bob",
		"@nobody are you there",
		"/history 1",
		"/quit",
	}, "\n")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, aliceTTY.run(ctx, alice, strings.NewReader(script)))

	assert.False(t, alice.Connected())

	out := aliceOut.String()
	assert.Contains(t, out, "No destination")
	assert.Contains(t, out, "# alice -- bob:")
	assert.Contains(t, out, "  hi bob\n")
	assert.Contains(t, out, "Message to nobody not delivered")
	assert.Contains(t, out, "alice -> bob: hi bob\n")
	assert.Equal(t, 1, aliceTTY.hist.Len())

	require.Eventually(t, func() bool {
		return strings.Contains(bobOut.String(), "# alice -- bob:\n  hi bob\n")
	}, time.Second, 10*time.Millisecond)
	lines := bobTTY.hist.Last(1)
	require.Len(t, lines, 1)
	assert.Equal(t, "alice", lines[0].From)
	assert.Equal(t, "bob", lines[0].To)
}

func TestTerminalEOFDisconnects(t *testing.T) {
	srv := relaytest.Start(t, relaytest.WithoutRouting())
	alice, tty, _ := startTerminal(t, srv, "alice")

	require.NoError(t, tty.run(context.Background(), alice, strings.NewReader("/who\n")))
	srv.Expect(t, "alice", "8")
	srv.Expect(t, "alice", "1")
	assert.False(t, alice.Connected())
}

func TestTerminalServerDrop(t *testing.T) {
	srv := relaytest.Start(t)
	alice, tty, _ := startTerminal(t, srv, "alice")

	// A reader that never returns keeps run waiting on the session.
	block := &blockingReader{done: make(chan struct{})}
	defer close(block.done)

	errCh := make(chan error, 1)
	go func() { errCh <- tty.run(context.Background(), alice, block) }()

	srv.Kick(t, "alice")
	select {
	case err := <-errCh:
		assert.ErrorContains(t, err, "lost")
	case <-time.After(3 * time.Second):
		t.Fatal("run did not notice the server going away")
	}
}

type blockingReader struct{ done chan struct{} }

func (r *blockingReader) Read([]byte) (int, error) {
	<-r.done
	return 0, context.Canceled
}

func TestSendOnce(t *testing.T) {
	srv := relaytest.Start(t)
	_, _, bobOut := startTerminal(t, srv, "bob")

	s := client.New(fastConfig(), nil)
	defer s.Close()
	require.NoError(t, sendOnce(context.Background(), s, srv.Addr(), "alice", "bob", "one shot"))
	assert.False(t, s.Connected())

	require.Eventually(t, func() bool {
		return strings.Contains(bobOut.String(), "one shot")
	}, time.Second, 10*time.Millisecond)

	s2 := client.New(fastConfig(), nil)
	defer s2.Close()
	assert.Error(t, sendOnce(context.Background(), s2, srv.Addr(), "carol", "nobody", "lost"))
}
