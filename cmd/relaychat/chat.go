package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chronologos/relaychat/internal/client"
	"github.com/chronologos/relaychat/internal/history"
	"github.com/chronologos/relaychat/internal/protocol"
)

const (
	consoleTimeFormat = "02.01 15:04:05"
	defaultHistory    = 20
)

var chatCmd = &cobra.Command{
	Use:   "chat [NAME]",
	Short: "Interactive chat. Commands: /to NAME, @NAME text, /who, /history [N], /quit.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		name := cfg.Name
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return errors.New("no name given and none configured")
		}

		tty := newTerminal(cmd.OutOrStdout(), term.IsTerminal(int(os.Stdin.Fd())), name)
		s := client.New(cfg.Client(log), tty)
		defer s.Close()

		tty.OnConsoleLog(fmt.Sprintf("Attempting connection to server on %s.", cfg.Server))
		if err := s.Connect(cmd.Context(), cfg.Server, name); err != nil {
			return err
		}
		tty.OnConsoleLog(fmt.Sprintf("Connected as %s.", name))
		return tty.run(cmd.Context(), s, os.Stdin)
	},
}

// terminal renders session events as lines of text and turns typed lines
// into session calls.
type terminal struct {
	mu     sync.Mutex
	out    io.Writer
	prompt bool
	self   string
	dest   string
	hist   *history.Log
}

func newTerminal(out io.Writer, prompt bool, self string) *terminal {
	return &terminal{out: out, prompt: prompt, self: self, hist: history.New(history.DefaultCapacity)}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) OnMessageDelivered(source, body string) {
	t.hist.Append(source, t.self, body)
	t.printf("  %s\n", body)
}

func (t *terminal) OnStatusNotification(protocol.StatusCode) {}

func (t *terminal) OnConsoleLog(text string) {
	t.printf("%s - %s\n", time.Now().Format(consoleTimeFormat), text)
}

func (t *terminal) OnThreadChange(sender, destination string) {
	t.printf("# %s -- %s:\n", sender, destination)
}

func (t *terminal) showPrompt() {
	if !t.prompt {
		return
	}
	t.mu.Lock()
	dest := t.dest
	t.mu.Unlock()
	t.printf("[%s]> ", dest)
}

// lineKind is what a typed line asks for.
type lineKind int

const (
	lineEmpty lineKind = iota
	lineSend
	lineSetDest
	lineWho
	lineHistory
	lineQuit
	lineUnknown
)

type chatLine struct {
	kind lineKind
	dest string // lineSend with an explicit @NAME, or lineSetDest
	text string
	n    int // lineHistory
}

// parseLine interprets one line of input. Plain text goes to the current
// destination; "@NAME text" addresses NAME directly and makes it current.
func parseLine(raw string) chatLine {
	line := strings.TrimSpace(raw)
	switch {
	case line == "":
		return chatLine{kind: lineEmpty}
	case line == "/quit":
		return chatLine{kind: lineQuit}
	case line == "/who":
		return chatLine{kind: lineWho}
	case line == "/history" || strings.HasPrefix(line, "/history "):
		n := defaultHistory
		if arg := strings.TrimSpace(strings.TrimPrefix(line, "/history")); arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v <= 0 {
				return chatLine{kind: lineUnknown, text: line}
			}
			n = v
		}
		return chatLine{kind: lineHistory, n: n}
	case strings.HasPrefix(line, "/to "):
		return chatLine{kind: lineSetDest, dest: strings.TrimSpace(strings.TrimPrefix(line, "/to "))}
	case strings.HasPrefix(line, "/"):
		return chatLine{kind: lineUnknown, text: line}
	case strings.HasPrefix(line, "@"):
		dest, text, _ := strings.Cut(line[1:], " ")
		return chatLine{kind: lineSend, dest: dest, text: strings.TrimSpace(text)}
	default:
		return chatLine{kind: lineSend, text: line}
	}
}

// run reads lines from in until /quit, EOF, ctx ends or the server drops us.
func (t *terminal) run(ctx context.Context, s *client.Session, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	alive := time.NewTicker(200 * time.Millisecond)
	defer alive.Stop()

	t.showPrompt()
	for {
		select {
		case <-ctx.Done():
			return s.Disconnect(context.Background())
		case <-alive.C:
			if !s.Connected() {
				return errors.New("connection to server lost")
			}
		case raw, ok := <-lines:
			if !ok {
				return s.Disconnect(ctx)
			}
			if done, err := t.handle(ctx, s, parseLine(raw)); done {
				return err
			}
			t.showPrompt()
		}
	}
}

// handle executes one parsed line; done means the chat is over.
func (t *terminal) handle(ctx context.Context, s *client.Session, l chatLine) (done bool, err error) {
	switch l.kind {
	case lineEmpty:
	case lineQuit:
		return true, s.Disconnect(ctx)
	case lineWho:
		if err := s.RequestRoster(ctx); err != nil {
			t.OnConsoleLog(fmt.Sprintf("Roster request failed: %v", err))
		}
	case lineHistory:
		for _, ln := range t.hist.Last(l.n) {
			t.printf("%s %s -> %s: %s\n", ln.At.Format(time.TimeOnly), ln.From, ln.To, ln.Body)
		}
	case lineSetDest:
		if err := protocol.ValidateName(l.dest); err != nil {
			t.OnConsoleLog(fmt.Sprintf("Invalid destination: %v", err))
			break
		}
		t.mu.Lock()
		t.dest = l.dest
		t.mu.Unlock()
	case lineUnknown:
		t.OnConsoleLog(fmt.Sprintf("Unknown command %q. Try /to NAME, @NAME text, /who, /history [N] or /quit.", l.text))
	case lineSend:
		t.mu.Lock()
		if l.dest != "" {
			t.dest = l.dest
		}
		dest := t.dest
		t.mu.Unlock()
		if dest == "" {
			t.OnConsoleLog("No destination. Use /to NAME or @NAME text.")
			break
		}
		ok, err := s.SendMessage(ctx, dest, l.text)
		switch {
		case ok:
			t.hist.Append(t.self, dest, l.text)
			t.printf("  %s\n", l.text)
		case err != nil:
			t.OnConsoleLog(fmt.Sprintf("Message to %s not delivered: %v", dest, err))
		}
		if !s.Connected() {
			return true, errors.New("connection to server lost")
		}
	}
	return false, nil
}
