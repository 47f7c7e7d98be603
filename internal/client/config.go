package client

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/chronologos/relaychat/internal/protocol"
	"github.com/chronologos/relaychat/internal/transport"
)

const (
	defaultDialTimeout      = 5 * time.Second
	defaultSettleDelay      = 100 * time.Millisecond
	defaultHandshakeTimeout = 2 * time.Second
	defaultConfirmTimeout   = 200 * time.Millisecond
	defaultPollInterval     = 100 * time.Millisecond
	defaultReadTimeout      = 100 * time.Millisecond
	defaultWriteTimeout     = 2 * time.Second
	defaultStopGrace        = time.Second
)

// Config holds session configuration. Zero durations fall back to the
// defaults above; the zero Logger discards everything.
type Config struct {
	DialMode transport.DialMode // TCP (default) or QUIC

	DialTimeout      time.Duration
	SettleDelay      time.Duration // pause between sending the name and reading the reply
	HandshakeTimeout time.Duration
	ConfirmTimeout   time.Duration // how long SendMessage waits for MsgSuccess
	PollInterval     time.Duration // receive loop pause between reads
	ReadTimeout      time.Duration // per-read deadline in the receive loop
	WriteTimeout     time.Duration
	StopGrace        time.Duration // how long Disconnect waits for the loop to exit

	BufferSize int // receive buffer; one read is one frame

	Logger zerolog.Logger
}

// DefaultConfig returns the timings the relay protocol was tuned for.
func DefaultConfig() Config {
	return Config{
		DialMode:         transport.DialTCP,
		DialTimeout:      defaultDialTimeout,
		SettleDelay:      defaultSettleDelay,
		HandshakeTimeout: defaultHandshakeTimeout,
		ConfirmTimeout:   defaultConfirmTimeout,
		PollInterval:     defaultPollInterval,
		ReadTimeout:      defaultReadTimeout,
		WriteTimeout:     defaultWriteTimeout,
		StopGrace:        defaultStopGrace,
		BufferSize:       protocol.BufferSize,
		Logger:           zerolog.Nop(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&c.DialTimeout, d.DialTimeout)
	fill(&c.SettleDelay, d.SettleDelay)
	fill(&c.HandshakeTimeout, d.HandshakeTimeout)
	fill(&c.ConfirmTimeout, d.ConfirmTimeout)
	fill(&c.PollInterval, d.PollInterval)
	fill(&c.ReadTimeout, d.ReadTimeout)
	fill(&c.WriteTimeout, d.WriteTimeout)
	fill(&c.StopGrace, d.StopGrace)
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	return c
}
