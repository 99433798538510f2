// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/server"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/spf13/cobra"
)

func newStatusCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running server's refresh status",
		Long:  "Query the status endpoint of a running cloudclip server and print the last run and remote health.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, c)
		},
	}

	cmd.Flags().String("address", "", "server address to query (default: server.listen)")

	return cmd
}

// serverAddress returns the --address flag or the configured listen address.
func serverAddress(cmd *cobra.Command, c *cli) string {
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		return addr
	}
	return c.v.GetString("server.listen")
}

func runStatus(cmd *cobra.Command, c *cli) error {
	addr := serverAddress(cmd, c)
	out := cmd.OutOrStdout()

	var body server.StatusBody
	if err := newServerClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if cliperr.HasCode(err, cliperr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (run 'cloudclip serve')\n", addr)
			return nil
		}
		return err
	}

	printStatus(out, addr, body)
	return nil
}

func printStatus(w io.Writer, addr string, body server.StatusBody) {
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Server:", addr)
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Strategy:", body.Strategy)
	_, _ = fmt.Fprintf(w, "%-12s %d\n", "Runs:", body.Runs)

	if run := body.LastRun; run != nil {
		result := "success"
		if !run.Success {
			result = "failed (" + run.Reason + ")"
		}
		_, _ = fmt.Fprintf(w, "%-12s %s after %d attempt(s) at %s\n", "Last run:", result, run.Attempts,
			run.StartedAt.Local().Format(time.DateTime))
	} else {
		_, _ = fmt.Fprintf(w, "%-12s none\n", "Last run:")
	}

	if h := body.Health; h != nil {
		state := "available"
		if !h.Available {
			state = "cooling down"
		}
		_, _ = fmt.Fprintf(w, "%-12s %s (%d ok, %d failed)\n", "Remote:", state, h.SuccessCount, h.FailureCount)
	}

	if body.Schedule != "" {
		next := "pending"
		if body.NextRun != nil {
			next = body.NextRun.Local().Format(time.DateTime)
		}
		_, _ = fmt.Fprintf(w, "%-12s %s (next: %s)\n", "Schedule:", body.Schedule, next)
	}
}
