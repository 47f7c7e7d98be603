// Package history keeps a bounded, in-memory scrollback of chat lines.
package history

import (
	"sync"
	"time"
)

const DefaultCapacity = 500

// Line is one message shown in the chat view.
type Line struct {
	Seq  uint64
	At   time.Time
	From string
	To   string
	Body string
}

// Log is a ring of the most recent lines. Sequence numbers start at 1 and
// keep counting after old lines are evicted.
//
// Log is safe for concurrent use.
type Log struct {
	mu    sync.Mutex
	lines []Line
	head  int // next write slot
	count int
	seq   uint64
}

// New creates a log holding up to capacity lines.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{lines: make([]Line, capacity)}
}

// Append records a line and returns its sequence number.
func (l *Log) Append(from, to, body string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.lines[l.head] = Line{Seq: l.seq, At: time.Now(), From: from, To: to, Body: body}
	l.head = (l.head + 1) % len(l.lines)
	if l.count < len(l.lines) {
		l.count++
	}
	return l.seq
}

// oldest returns the slot of the oldest line. Caller holds l.mu.
func (l *Log) oldest() int {
	return (l.head - l.count + len(l.lines)) % len(l.lines)
}

// Since returns the retained lines with Seq > after, oldest first.
func (l *Log) Since(after uint64) []Line {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.since(after)
}

func (l *Log) since(after uint64) []Line {
	var out []Line
	start := l.oldest()
	for i := 0; i < l.count; i++ {
		ln := l.lines[(start+i)%len(l.lines)]
		if ln.Seq > after {
			out = append(out, ln)
		}
	}
	return out
}

// Last returns up to n of the newest lines, oldest first.
func (l *Log) Last(n int) []Line {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || l.count == 0 {
		return nil
	}
	n = min(n, l.count)
	return l.since(l.seq - uint64(n))
}

// Len returns how many lines are retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
