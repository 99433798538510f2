// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/config"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/server"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/trigger"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local refresh server",
		Long: "Serve the refresh API on the configured address so shortcuts and scripts can trigger refreshes, " +
			"and refresh on the configured cron schedule.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, c)
		},
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	cmd.Flags().String("schedule", "", "cron schedule for automatic refreshes, e.g. \"*/15 * * * *\"")
	_ = c.v.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))
	_ = c.v.BindPFlag("schedule", cmd.Flags().Lookup("schedule"))

	return cmd
}

// daemon is a wired server plus its optional scheduler.
type daemon struct {
	app       *App
	server    *server.Server
	scheduler *trigger.Scheduler
	logger    *slog.Logger
}

// newDaemon wires the app, the HTTP surface and the scheduler. Both surfaces
// share the app's dispatcher, so status reflects every run.
func newDaemon(cfg *config.Config, logger *slog.Logger, console io.Writer) (*daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app, err := WireApp(cfg, logger, console)
	if err != nil {
		return nil, err
	}

	opts := []server.ServicesOption{
		server.WithHealth(app.Health),
		server.WithRegistry(app.Metrics.Registry),
	}

	var sched *trigger.Scheduler
	if cfg.Schedule != "" {
		sched, err = trigger.NewScheduler(cfg.Schedule, app.Dispatcher, logger)
		if err != nil {
			_ = app.Close()
			return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "creating scheduler")
		}
		opts = append(opts, server.WithSchedule(sched))
	}

	svc, err := server.NewServices(app.Dispatcher, app.Strategy.Name(), opts...)
	if err != nil {
		_ = app.Close()
		return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "creating services")
	}

	server.Version = version
	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		},
		Logger: logger,
	})
	if err != nil {
		_ = app.Close()
		return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "creating server")
	}
	srv.RegisterServices(svc)

	return &daemon{app: app, server: srv, scheduler: sched, logger: logger}, nil
}

// run serves until ctx is done, then waits for in-flight runs.
func (d *daemon) run(ctx context.Context) error {
	stop := func() {}
	if d.scheduler != nil {
		stop = d.scheduler.Start(ctx)
	}

	err := d.server.Start(ctx)

	// Scheduled runs must finish before the store they read is closed.
	stop()
	if cerr := d.app.Close(); cerr != nil {
		d.logger.Warn("closing settings store", "error", cerr)
	}
	return err
}

func runServe(cmd *cobra.Command, c *cli) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	d, err := newDaemon(cfg, c.logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "off"
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Serving cloudclip on %s (strategy=%s, schedule=%s)\n",
		cfg.Server.Listen, cfg.Strategy, schedule); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.run(ctx)
}
