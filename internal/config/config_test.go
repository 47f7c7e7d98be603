package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronologos/relaychat/internal/transport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relaychat.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultServer, cfg.Server)
	assert.Equal(t, transport.DialTCP, cfg.Transport)
	assert.Equal(t, 512, cfg.BufferSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.Settle)
	assert.Equal(t, 200*time.Millisecond, cfg.Timing.Confirm)
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.Poll)
}

func TestMergeFile(t *testing.T) {
	path := writeConfig(t, `
server = "chat.example:9000"
name = "alice"
transport = "quic"
buffer_size = "1KiB"
log_level = "debug"

[timing]
confirm_timeout = "750ms"
poll_interval = "20ms"
`)

	cfg := Default()
	require.NoError(t, cfg.mergeFile(path))

	assert.Equal(t, "chat.example:9000", cfg.Server)
	assert.Equal(t, "alice", cfg.Name)
	assert.Equal(t, transport.DialQUIC, cfg.Transport)
	assert.Equal(t, 1024, cfg.BufferSize)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 750*time.Millisecond, cfg.Timing.Confirm)
	assert.Equal(t, 20*time.Millisecond, cfg.Timing.Poll)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.Settle)
}

func TestMergeFileErrors(t *testing.T) {
	cases := map[string]string{
		"bad transport":   `transport = "carrier-pigeon"`,
		"bad duration":    "[timing]\nconfirm_timeout = \"soon\"",
		"zero duration":   "[timing]\npoll_interval = \"0s\"",
		"bad buffer":      `buffer_size = "lots"`,
		"huge buffer":     `buffer_size = "1GiB"`,
		"bad level":       `log_level = "shouty"`,
		"unknown key":     `colour = "blue"`,
		"not toml at all": `server = `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, cfg.mergeFile(writeConfig(t, body)))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvServer:    "10.0.0.1:12345",
		EnvName:      "bob",
		EnvTransport: "QUIC",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "10.0.0.1:12345", cfg.Server)
	assert.Equal(t, "bob", cfg.Name)
	assert.Equal(t, transport.DialQUIC, cfg.Transport)

	env[EnvTransport] = "smoke"
	assert.Error(t, cfg.ApplyEnv(lookup))

	before := cfg
	require.NoError(t, cfg.ApplyEnv(noEnv))
	assert.Equal(t, before, cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `server = "file:1"`)
	t.Setenv(EnvServer, "env:2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env:2", cfg.Server)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Name = "1abc"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server = ""
	assert.Error(t, cfg.Validate())
}

func TestClientConfig(t *testing.T) {
	cfg := Default()
	cfg.Transport = transport.DialQUIC
	cfg.Timing.Confirm = time.Second

	cc := cfg.Client(zerolog.Nop())
	assert.Equal(t, transport.DialQUIC, cc.DialMode)
	assert.Equal(t, time.Second, cc.ConfirmTimeout)
	assert.Equal(t, cfg.BufferSize, cc.BufferSize)
	assert.Equal(t, cfg.Timing.StopGrace, cc.StopGrace)
}
