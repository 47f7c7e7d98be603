package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chronologos/relaychat/internal/client"
)

var sendCmd = &cobra.Command{
	Use:   "send NAME DEST TEXT...",
	Short: "Connect as NAME, send one message to DEST and disconnect.",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		out := cmd.ErrOrStderr()
		s := client.New(cfg.Client(log), client.HandlerFuncs{
			ConsoleLog: func(text string) { fmt.Fprintln(out, text) },
		})
		defer s.Close()

		return sendOnce(cmd.Context(), s, cfg.Server, args[0], args[1], strings.Join(args[2:], " "))
	},
}

func sendOnce(ctx context.Context, s *client.Session, server, name, dest, text string) error {
	if err := s.Connect(ctx, server, name); err != nil {
		return errors.Wrap(err, "connect failed")
	}
	ok, err := s.SendMessage(ctx, dest, text)
	if discErr := s.Disconnect(ctx); discErr != nil && err == nil {
		err = discErr
	}
	if err != nil {
		return errors.Wrapf(err, "send to %s failed", dest)
	}
	if !ok {
		return errors.Errorf("send to %s not confirmed", dest)
	}
	return nil
}
