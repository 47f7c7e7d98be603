// Package logging builds the zerolog loggers used across relaychat.
//
// Library packages never log unless handed a logger; the CLI builds one
// here from flags, config and environment.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "RELAYCHAT_LOG_LEVEL"
	EnvLogTimestamp = "RELAYCHAT_LOG_TIMESTAMP"
	EnvLogNoColor   = "RELAYCHAT_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Settings controls how console loggers render.
type Settings struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
}

var (
	configureOnce sync.Once
	configured    Settings
)

// Configure resolves the process-wide settings for profile, applying the
// RELAYCHAT_LOG_* environment overrides. Only the first call has effect.
func Configure(profile Profile) Settings {
	configureOnce.Do(func() {
		s := defaultSettings(profile)
		applyEnvOverrides(&s)
		configured = s
	})
	return configured
}

func defaultSettings(profile Profile) Settings {
	switch profile {
	case ProfileTest:
		return Settings{Level: zerolog.DebugLevel, Timestamp: false}
	default:
		return Settings{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyEnvOverrides(s *Settings) {
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if lvl, err := ParseLevel(raw); err == nil {
			s.Level = lvl
		}
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		s.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		s.NoColor = v
	}
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off", "none":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, errors.Errorf("unknown log level %q", raw)
	}
}

// Logger builds a console logger writing to w.
func (s Settings) Logger(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    s.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !s.Timestamp {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	return zerolog.New(cw).Level(s.Level).With().Timestamp().Logger()
}

// New is shorthand for a timestamped console logger at level.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return Settings{Level: level, Timestamp: true}.Logger(w)
}

// Component tags l with the subsystem it belongs to.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
