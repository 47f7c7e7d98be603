// Package config loads relaychat settings from a TOML file and the
// environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/alecthomas/units"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/chronologos/relaychat/internal/client"
	"github.com/chronologos/relaychat/internal/logging"
	"github.com/chronologos/relaychat/internal/protocol"
	"github.com/chronologos/relaychat/internal/transport"
)

const (
	EnvServer    = "RELAYCHAT_SERVER"
	EnvName      = "RELAYCHAT_NAME"
	EnvTransport = "RELAYCHAT_TRANSPORT"

	DefaultServer = "localhost:12345"

	maxBufferSize = 64 * units.KiB
)

// Config is the resolved CLI configuration.
type Config struct {
	Server     string
	Name       string // default name for chat/send when none is given
	Transport  transport.DialMode
	BufferSize int
	LogLevel   zerolog.Level
	Timing     Timing
}

// Timing mirrors the duration knobs of client.Config.
type Timing struct {
	Dial      time.Duration
	Settle    time.Duration
	Handshake time.Duration
	Confirm   time.Duration
	Poll      time.Duration
	Read      time.Duration
	Write     time.Duration
	StopGrace time.Duration
}

type fileConfig struct {
	Server     string     `toml:"server"`
	Name       string     `toml:"name"`
	Transport  string     `toml:"transport"`
	BufferSize string     `toml:"buffer_size"`
	LogLevel   string     `toml:"log_level"`
	Timing     fileTiming `toml:"timing"`
}

type fileTiming struct {
	DialTimeout      string `toml:"dial_timeout"`
	SettleDelay      string `toml:"settle_delay"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	ConfirmTimeout   string `toml:"confirm_timeout"`
	PollInterval     string `toml:"poll_interval"`
	ReadTimeout      string `toml:"read_timeout"`
	WriteTimeout     string `toml:"write_timeout"`
	StopGrace        string `toml:"stop_grace"`
}

// Default returns the built-in configuration.
func Default() Config {
	cc := client.DefaultConfig()
	return Config{
		Server:     DefaultServer,
		Transport:  cc.DialMode,
		BufferSize: cc.BufferSize,
		LogLevel:   zerolog.InfoLevel,
		Timing: Timing{
			Dial:      cc.DialTimeout,
			Settle:    cc.SettleDelay,
			Handshake: cc.HandshakeTimeout,
			Confirm:   cc.ConfirmTimeout,
			Poll:      cc.PollInterval,
			Read:      cc.ReadTimeout,
			Write:     cc.WriteTimeout,
			StopGrace: cc.StopGrace,
		},
	}
}

// Load layers an optional file and then the environment over Default.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return errors.Wrapf(err, "load config %s failed", path)
	}

	if meta.IsDefined("server") {
		if s := strings.TrimSpace(raw.Server); s != "" {
			c.Server = s
		}
	}
	if meta.IsDefined("name") {
		c.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("transport") {
		mode, err := transport.ParseDialMode(raw.Transport)
		if err != nil {
			return errors.Wrap(err, "parse transport failed")
		}
		c.Transport = mode
	}
	if meta.IsDefined("buffer_size") {
		n, err := parseBufferSize(raw.BufferSize)
		if err != nil {
			return err
		}
		c.BufferSize = n
	}
	if meta.IsDefined("log_level") {
		lvl, err := logging.ParseLevel(raw.LogLevel)
		if err != nil {
			return errors.Wrap(err, "parse log_level failed")
		}
		c.LogLevel = lvl
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"dial_timeout", raw.Timing.DialTimeout, &c.Timing.Dial},
		{"settle_delay", raw.Timing.SettleDelay, &c.Timing.Settle},
		{"handshake_timeout", raw.Timing.HandshakeTimeout, &c.Timing.Handshake},
		{"confirm_timeout", raw.Timing.ConfirmTimeout, &c.Timing.Confirm},
		{"poll_interval", raw.Timing.PollInterval, &c.Timing.Poll},
		{"read_timeout", raw.Timing.ReadTimeout, &c.Timing.Read},
		{"write_timeout", raw.Timing.WriteTimeout, &c.Timing.Write},
		{"stop_grace", raw.Timing.StopGrace, &c.Timing.StopGrace},
	}
	for _, d := range durations {
		if !meta.IsDefined("timing", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return errors.Wrapf(err, "parse timing.%s failed", d.key)
		}
		if v <= 0 {
			return errors.Errorf("timing.%s must be positive, got %s", d.key, v)
		}
		*d.dst = v
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown config key %q", undecoded[0].String())
	}
	return nil
}

// ApplyEnv overrides server, name and transport from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvServer); ok && strings.TrimSpace(v) != "" {
		c.Server = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvName); ok && strings.TrimSpace(v) != "" {
		c.Name = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTransport); ok && strings.TrimSpace(v) != "" {
		mode, err := transport.ParseDialMode(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s failed", EnvTransport)
		}
		c.Transport = mode
	}
	return nil
}

// Validate checks the fields a session needs before dialing.
func (c Config) Validate() error {
	if c.Server == "" {
		return errors.New("server address is empty")
	}
	if c.Name != "" {
		if err := protocol.ValidateName(c.Name); err != nil {
			return errors.Wrap(err, "configured name")
		}
	}
	return nil
}

// Client builds the session configuration.
func (c Config) Client(logger zerolog.Logger) client.Config {
	return client.Config{
		DialMode:         c.Transport,
		DialTimeout:      c.Timing.Dial,
		SettleDelay:      c.Timing.Settle,
		HandshakeTimeout: c.Timing.Handshake,
		ConfirmTimeout:   c.Timing.Confirm,
		PollInterval:     c.Timing.Poll,
		ReadTimeout:      c.Timing.Read,
		WriteTimeout:     c.Timing.Write,
		StopGrace:        c.Timing.StopGrace,
		BufferSize:       c.BufferSize,
		Logger:           logger,
	}
}

func parseBufferSize(raw string) (int, error) {
	n, err := units.ParseBase2Bytes(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Wrap(err, "parse buffer_size failed")
	}
	if n <= 0 || n > maxBufferSize {
		return 0, errors.Errorf("buffer_size %s out of range (1B..%s)", n, maxBufferSize)
	}
	return int(n), nil
}
