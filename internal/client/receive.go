package client

import (
	"context"
	"fmt"
	"time"

	"github.com/chronologos/relaychat/internal/protocol"
	"github.com/chronologos/relaychat/internal/transport"
)

// receiveLoop owns every read after the handshake. Each pass reads at most
// one frame, bounded by ReadTimeout, then sleeps PollInterval. It exits when
// ctx is cancelled or the connection fails.
func (s *Session) receiveLoop(ctx context.Context, conn transport.Conn, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, s.cfg.BufferSize)
	for {
		if ctx.Err() != nil {
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			s.teardown(ctx, conn, err)
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			s.handleFrame(ctx, conn, buf[:n])
		}
		if err != nil && !transport.IsTimeout(err) {
			s.teardown(ctx, conn, err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// handleFrame dispatches one received frame.
func (s *Session) handleFrame(ctx context.Context, conn transport.Conn, data []byte) {
	frame, err := protocol.Decode(data, s.Name())
	if err != nil {
		s.log.Warn().Err(err).Msg("discarding frame")
		s.handler.OnConsoleLog(fmt.Sprintf("Discarded unreadable frame %q", data))
		return
	}

	switch f := frame.(type) {
	case *protocol.Envelope:
		s.observe(f.Source, f.Destination)
		s.handler.OnMessageDelivered(f.Source, f.Body)
		if err := s.write(ctx, conn, protocol.EncodeStatus(protocol.MsgReceived)); err != nil {
			s.log.Warn().Err(err).Str("from", f.Source).Msg("acknowledge failed")
		}

	case *protocol.StatusFrame:
		if s.confirm.resolve(f.Code) {
			if f.Code != protocol.MsgSuccess {
				s.handler.OnConsoleLog(fmt.Sprintf("Message failed with error code %s", f.Code))
			}
			return
		}
		s.log.Debug().Stringer("code", f.Code).Msg("status notification")
		s.handler.OnConsoleLog(fmt.Sprintf("Received the following status code: %s.", f.Code))
		s.handler.OnStatusNotification(f.Code)
	}
}

// teardown handles the server going away underneath a connected session.
func (s *Session) teardown(ctx context.Context, conn transport.Conn, cause error) {
	s.mu.Lock()
	if ctx.Err() != nil || s.conn != conn || s.state != StateConnected {
		// Disconnect got there first.
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.spent = true
	s.conn = nil
	stop := s.stop
	s.mu.Unlock()

	stop()
	s.confirm.cancel()
	conn.Close()

	s.log.Warn().Err(cause).Msg("connection lost")
	s.handler.OnConsoleLog("Connection to server lost.")
}
