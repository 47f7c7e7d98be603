// Command relaychat is a terminal client for a relay chat server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chronologos/relaychat/internal/config"
	"github.com/chronologos/relaychat/internal/logging"
	"github.com/chronologos/relaychat/internal/transport"
	"github.com/chronologos/relaychat/internal/version"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagServer    string
	flagTransport string

	rootCmd = &cobra.Command{
		Use:           "relaychat",
		Short:         "Chat with other named clients through a relay server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version and exit.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to a TOML config file")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")
	pf.StringVar(&flagServer, "server", "", "relay server address host:port")
	pf.StringVar(&flagTransport, "transport", "", "tcp or quic")

	rootCmd.AddCommand(chatCmd, sendCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "relaychat: %v\n", err)
		os.Exit(1)
	}
}

// setup resolves configuration in order: defaults, config file, environment,
// flags. The logger writes to stderr so it never mixes with chat output.
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}

	if flagServer != "" {
		cfg.Server = flagServer
	}
	if flagTransport != "" {
		mode, err := transport.ParseDialMode(flagTransport)
		if err != nil {
			return config.Config{}, zerolog.Nop(), errors.Wrap(err, "parse --transport failed")
		}
		cfg.Transport = mode
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, zerolog.Nop(), err
	}

	settings := logging.Configure(logging.ProfileRuntime)
	if _, fromEnv := os.LookupEnv(logging.EnvLogLevel); !fromEnv {
		settings.Level = cfg.LogLevel
	}
	if flagLogLevel != "" {
		lvl, err := logging.ParseLevel(flagLogLevel)
		if err != nil {
			return config.Config{}, zerolog.Nop(), errors.Wrap(err, "parse --log-level failed")
		}
		settings.Level = lvl
	}

	return cfg, settings.Logger(os.Stderr), nil
}
