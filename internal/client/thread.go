package client

import "sync"

// Thread remembers the last (sender, destination) pair shown so a chat view
// can print a header only when the conversation changes.
type Thread struct {
	mu          sync.Mutex
	sender      string
	destination string
	seen        bool
}

// Observe records a message and reports whether it starts a new thread.
func (t *Thread) Observe(sender, destination string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen && t.sender == sender && t.destination == destination {
		return false
	}
	t.sender, t.destination, t.seen = sender, destination, true
	return true
}

// Last returns the current pair; both are empty before the first message.
func (t *Thread) Last() (sender, destination string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sender, t.destination
}
