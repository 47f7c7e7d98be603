package client

import (
	"sync"

	"github.com/chronologos/relaychat/internal/protocol"
)

// outcome is what an armed confirmation resolves to.
type outcome struct {
	code      protocol.StatusCode
	cancelled bool // session went away before any status arrived
}

// Confirmation tracks the single outstanding SendMessage. The sender arms
// it before writing, so a reply that beats the sender back to its select
// is never lost: each arm gets its own buffered channel.
type Confirmation struct {
	mu      sync.Mutex
	pending chan outcome // nil when not armed

	lastCode protocol.StatusCode
	hasLast  bool
}

// arm starts a new wait and returns the channel its outcome arrives on.
// Any previous wait is dropped.
func (c *Confirmation) arm() <-chan outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(chan outcome, 1)
	return c.pending
}

// resolve hands code to the armed wait. It returns false when nothing is
// armed, in which case the caller should treat code as a notification.
func (c *Confirmation) resolve(code protocol.StatusCode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false
	}
	c.pending <- outcome{code: code}
	c.pending = nil
	c.lastCode, c.hasLast = code, true
	return true
}

// cancel wakes the armed wait, if any, without a code.
func (c *Confirmation) cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return
	}
	c.pending <- outcome{cancelled: true}
	c.pending = nil
}

// disarm drops the armed wait without waking it. Used after a timeout or a
// failed write, when the waiter has already given up.
func (c *Confirmation) disarm() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// Awaiting reports whether a confirmation is armed.
func (c *Confirmation) Awaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Last returns the most recent code that resolved a confirmation.
func (c *Confirmation) Last() (protocol.StatusCode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCode, c.hasLast
}
