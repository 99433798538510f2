// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/server"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/trigger"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/spf13/cobra"
)

func newRefreshCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the cloud clipboard and copy it locally",
		Long: "Read the store ID and passphrase from the settings store, fetch the shared text with up to three attempts, " +
			"write it to the clipboard and print a notification.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefresh(cmd, c)
		},
	}

	cmd.Flags().String("action", string(trigger.ActionRefresh), "refresh or background_refresh")
	cmd.Flags().String("remote", "", "ask a running server at host:port to refresh instead")
	cmd.Flags().Bool("print", false, "also print the fetched text to stdout")

	return cmd
}

func runRefresh(cmd *cobra.Command, c *cli) error {
	rawAction, _ := cmd.Flags().GetString("action")
	action, err := trigger.ParseAction(rawAction)
	if err != nil {
		return cliperr.Wrap(err, cliperr.CodeCLIInputInvalid, "invalid --action")
	}

	if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
		return runRemoteRefresh(cmd, remote, action)
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	app, err := WireApp(cfg, c.logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, started := app.Dispatcher.Dispatch(ctx, action)
	if started {
		app.Dispatcher.Wait()
		out, _, _ = app.Dispatcher.Last()
	}

	if err := app.Close(); err != nil {
		c.logger.Warn("closing settings store", "error", err)
	}

	if printText, _ := cmd.Flags().GetBool("print"); printText && out.Success() {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), out.Content); err != nil {
			return err
		}
	}

	return out.Err()
}

func runRemoteRefresh(cmd *cobra.Command, addr string, action trigger.Action) error {
	var body struct {
		Action string             `json:"action"`
		Status string             `json:"status"`
		Run    *server.RunSummary `json:"run"`
	}
	if err := newServerClient(addr).postRefresh(string(action), &body); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if body.Run == nil {
		_, err := fmt.Fprintf(w, "Refresh %s on %s\n", body.Status, addr)
		return err
	}
	_, err := fmt.Fprintf(w, "Refresh %s on %s: strategy=%s attempts=%d clipboard_written=%t\n",
		body.Status, addr, body.Run.Strategy, body.Run.Attempts, body.Run.ClipboardWritten)
	return err
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
