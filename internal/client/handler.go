package client

import "github.com/chronologos/relaychat/internal/protocol"

// Handler receives everything a session wants to show the user. Calls come
// from the receive loop goroutine and from the goroutines calling Session
// methods, so implementations must be safe for concurrent use.
type Handler interface {
	// OnMessageDelivered is called once per chat message received.
	OnMessageDelivered(source, body string)
	// OnStatusNotification is called for status codes nobody was waiting for.
	OnStatusNotification(code protocol.StatusCode)
	// OnConsoleLog carries human-readable diagnostics.
	OnConsoleLog(text string)
}

// ThreadHandler is optionally implemented by a Handler that groups the chat
// view by (sender, destination) pair.
type ThreadHandler interface {
	OnThreadChange(sender, destination string)
}

// HandlerFuncs adapts plain functions to Handler and ThreadHandler.
// Nil fields are skipped.
type HandlerFuncs struct {
	MessageDelivered   func(source, body string)
	StatusNotification func(code protocol.StatusCode)
	ConsoleLog         func(text string)
	ThreadChange       func(sender, destination string)
}

func (h HandlerFuncs) OnMessageDelivered(source, body string) {
	if h.MessageDelivered != nil {
		h.MessageDelivered(source, body)
	}
}

func (h HandlerFuncs) OnStatusNotification(code protocol.StatusCode) {
	if h.StatusNotification != nil {
		h.StatusNotification(code)
	}
}

func (h HandlerFuncs) OnConsoleLog(text string) {
	if h.ConsoleLog != nil {
		h.ConsoleLog(text)
	}
}

func (h HandlerFuncs) OnThreadChange(sender, destination string) {
	if h.ThreadChange != nil {
		h.ThreadChange(sender, destination)
	}
}
